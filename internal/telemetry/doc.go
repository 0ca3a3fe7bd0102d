// Package telemetry — логи, метрики и трейсы движка саг.
//
// Логгер саги (с полями saga и saga_id) кладётся в контекст шага,
// шаг достаёт его через FromContext. Метрики регистрируются в
// переданном реестре Prometheus и отдаются на /metrics. Трейсы
// экспортируются по OTLP/HTTP, если задан endpoint.
package telemetry
