// Package recovery продолжает саги, прерванные падением процесса.
//
// Recoverer периодически выбирает из хранилища незавершённые записи
// (PENDING, RUNNING, COMPENSATING), которые давно не обновлялись,
// и вызывает Resume у Orchestrator с тем же именем определения.
//
// Использование:
//
//	rec := recovery.New(recovery.Config{
//	    Lister:     store,
//	    Resumers:   []saga.Resumer{signupOrch},
//	    StaleAfter: time.Minute,
//	})
//	if err := rec.Start(ctx, "@every 30s"); err != nil {
//	    return err
//	}
//	defer rec.Stop()
//
// FAILED саги не выбираются: их продолжают вручную (sagaflow resume).
package recovery
