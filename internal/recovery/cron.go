package recovery

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule — расписание обхода по умолчанию.
const DefaultSchedule = "@every 30s"

// cronParser — стандартные пять полей плюс дескрипторы (@every, @hourly, ...).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule проверяет cron-выражение расписания.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
