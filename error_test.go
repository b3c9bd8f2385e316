package oscmon

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BTBurke/oscmon/pkg/sample"
)

func TestReportErrorForwards(t *testing.T) {
	m, _ := newMonitor(t)
	mocks := &mockReporter{}
	m.errors = mocks
	boom := errors.New("decode failed")
	mocks.On("ReportError", boom).Return()

	m.ReportError(boom)
	m.ReportError(nil)

	mocks.AssertExpectations(silenceT(t))
	mocks.AssertNumberOfCalls(t, "ReportError", 1)
}

func TestCleanRunReportsNothing(t *testing.T) {
	m, _ := newMonitor(t)
	mocks := &mockReporter{}
	m.errors = mocks

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, m.Run(ctx, scriptedSource{samples: []sample.Sample{}}))
	mocks.AssertNumberOfCalls(t, "ReportError", 0)
}

func TestErrorServiceSuppressed(t *testing.T) {
	SuppressErrorReporting = true
	defer func() { SuppressErrorReporting = false }()
	// returns without contacting the reporting service
	errorService{}.ReportError(errors.New("boom"))
}
