package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderContext(t *testing.T) {
	t.Parallel()

	ee := Newf("bus %d out of range", 4).
		Component("audiocore").
		Category(CategoryGraph).
		Priority(PriorityHigh).
		Context("bus", 4).
		Build()

	assert.Equal(t, "audiocore", ee.GetComponent())
	assert.Equal(t, "graph", ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())
	assert.Equal(t, 4, ee.GetContext()["bus"])

	// Returned context is a copy
	ctx := ee.GetContext()
	ctx["bus"] = 9
	assert.Equal(t, 4, ee.GetContext()["bus"])
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestEnhancedErrorIs(t *testing.T) {
	t.Parallel()

	errA := New(stderrors.New("node not found")).Category(CategoryNotFound).Build()
	errB := New(stderrors.New("device not found")).Category(CategoryNotFound).Build()

	wrapped := New(errA).Category(CategoryNotFound).Context("node_id", "n1").Build()
	recategorized := New(errA).Category(CategoryGraph).Build()
	fmtWrapped := fmt.Errorf("detach: %w", errA)

	assert.True(t, Is(errA, errA))
	assert.False(t, Is(errA, errB), "sentinels sharing a category must stay distinct")
	assert.True(t, Is(wrapped, errA))
	assert.False(t, Is(wrapped, errB))
	assert.True(t, Is(recategorized, errA))
	assert.True(t, Is(fmtWrapped, errA))
	assert.True(t, IsNotFound(wrapped))
	assert.True(t, IsCategory(recategorized, CategoryGraph))
}

func TestErrorHooksActivateSlowPath(t *testing.T) {
	SetTelemetryReporter(nil)
	ClearErrorHooks()
	t.Cleanup(ClearErrorHooks)

	var seen []*EnhancedError
	AddErrorHook(func(ee *EnhancedError) { seen = append(seen, ee) })

	ee := New(NewStd("render failed")).Component("audiocore").Build()

	require.Len(t, seen, 1)
	assert.Same(t, ee, seen[0])
	assert.Equal(t, CategoryRender, ee.Category, "category is detected on the slow path")
}

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

type refusingPublisher struct{ calls int }

func (p *refusingPublisher) TryPublishError(*EnhancedError) bool {
	p.calls++
	return false
}

func TestReportFallsBackWhenPublisherRefuses(t *testing.T) {
	reporter := &recordingReporter{}
	publisher := &refusingPublisher{}
	SetTelemetryReporter(reporter)
	SetEventPublisher(publisher)
	t.Cleanup(func() {
		SetEventPublisher(nil)
		SetTelemetryReporter(nil)
	})

	ee := New(NewStd("device vanished")).Component("driver.malgo").Build()

	assert.Equal(t, 1, publisher.calls)
	require.Len(t, reporter.reported, 1)
	assert.True(t, ee.IsReported())
	assert.Equal(t, CategoryDevice, ee.Category)
}

func TestDetectCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg       string
		component string
		want      ErrorCategory
	}{
		{"output device missing", "", CategoryDevice},
		{"bus 3 out of range", "", CategoryGraph},
		{"render stalled", "", CategoryRender},
		{"cannot open file", "", CategoryFileIO},
		{"invalid duration", "", CategoryValidation},
		{"something odd", "audiocore", CategoryEngine},
		{"something odd", "driver.null", CategoryDevice},
		{"something odd", "", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.msg+"/"+tt.component, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detectCategory(NewStd(tt.msg), tt.component))
		})
	}
}

func TestLookupComponentPrefersLongestPattern(t *testing.T) {
	t.Parallel()

	got := lookupComponent("github.com/tphakala/audiograph/internal/audiocore/drivers/malgo.(*Driver).Start")
	assert.Equal(t, "driver.malgo", got)

	got = lookupComponent("github.com/tphakala/audiograph/internal/audiocore.(*Graph).Attach")
	assert.Equal(t, "audiocore", got)
}

func TestBasicScrub(t *testing.T) {
	t.Parallel()

	msg := basicScrub("open /home/alice/music/a.wav failed, dsn https://key@o1.ingest.sentry.io/1")
	assert.NotContains(t, msg, "alice")
	assert.NotContains(t, msg, "key@")
	assert.Contains(t, msg, "[USER]")
}
