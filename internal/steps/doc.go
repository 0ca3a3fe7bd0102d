// Package steps содержит готовые шаги саг.
//
// # HTTP (http.go)
//
// NewHTTP строит шаг из двух запросов: прямого и компенсирующего.
// Запросы собираются из payload и контекста выполнения, поэтому
// компенсация может использовать результат прямого вызова:
//
//	steps.NewHTTP(steps.HTTPConfig[Order]{
//	    Name: "reserve",
//	    Forward: func(o Order, _ *domain.ExecutionContext) (*steps.Request, error) {
//	        return steps.JSON(http.MethodPost, base+"/reservations", o), nil
//	    },
//	    Compensate: func(_ Order, ec *domain.ExecutionContext) (*steps.Request, error) {
//	        id := steps.OutputString(ec, "reservation", "id")
//	        if id == "" {
//	            return nil, nil
//	        }
//	        return &steps.Request{Method: http.MethodDelete, URL: base + "/reservations/" + id}, nil
//	    },
//	    OutputKey: "reservation",
//	    Retryable: true,
//	})
//
// Ответ вне 2xx — *HTTPError. JSON ответ сохраняется в метаданных
// контекста под OutputKey (числа становятся float64).
//
// # Delay (delay.go)
//
// NewDelay — пауза, прерываемая отменой контекста.
package steps
