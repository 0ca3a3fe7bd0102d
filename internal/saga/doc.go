// Package saga реализует оркестратор саг.
//
// Сага — последовательность шагов над независимыми сервисами, которая
// выполняется как одна логическая (не ACID) транзакция. Если шаг падает
// после всех повторов, выполненные шаги откатываются компенсациями
// в обратном порядке.
//
// Структура:
//   - step.go         — описание шага (действие, компенсация, retry, timeout)
//   - definition.go   — неизменяемое определение саги
//   - orchestrator.go — Execute и машина состояний
//   - retry.go        — повторы с экспоненциальной задержкой и таймаутом
//   - compensate.go   — откат выполненных шагов
//   - resume.go       — продолжение саги из сохранённой записи
//   - store.go        — порт хранилища
//   - notify.go       — публикация событий жизненного цикла
//
// Использование:
//
//	def, err := saga.NewDefinition("signup", []saga.Step[Signup]{
//	    {Name: "createAccount", Execute: createAccount, Compensate: deleteAccount, Retryable: true},
//	    {Name: "createProfile", Execute: createProfile, Compensate: deleteProfile},
//	}, saga.Hooks[Signup]{})
//
//	orch, err := saga.New(def, saga.Config{Store: store, Notifier: notifier})
//	rec, err := orch.Execute(ctx, payload, nil)
//
// Шаги выполняются по принципу at-least-once: если процесс упал между
// успешным шагом и сохранением записи, Resume выполнит шаг повторно.
package saga
