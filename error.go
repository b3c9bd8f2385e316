package oscmon

import (
	"os"

	"github.com/stvp/rollbar"
)

// SuppressErrorReporting is a global flag to prevent the monitor
// from sending unexpected errors to Rollbar.  Data is anonymous and
// consists only of the error and a stack trace.
var SuppressErrorReporting bool

// ErrorReporter sends unexpected runtime errors, such as a sample source
// failing, to an external crash reporting service
type ErrorReporter interface {
	ReportError(err error)
}

type errorService struct{}

func init() {
	switch env := os.Getenv("OSCMON_ENVIRONMENT"); env {
	case "development":
		rollbar.Environment = "development"
	default:
		rollbar.Environment = "production"
	}
	rollbar.Token = os.Getenv("OSCMON_ROLLBAR_TOKEN")
}

// ReportError will send the result of an unexpected error to Rollbar
// unless reporting is suppressed or no token is configured.
func (e errorService) ReportError(err error) {
	if err == nil || SuppressErrorReporting || rollbar.Token == "" {
		return
	}
	rollbar.Error(rollbar.ERR, err)
}
