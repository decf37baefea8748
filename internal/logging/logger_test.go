package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCategoriesAreNamedChildren(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core), nil)

	for _, cat := range Categories() {
		l.Get(cat).Info("hello")
	}

	entries := logs.All()
	require.Len(t, entries, len(Categories()))
	for i, cat := range Categories() {
		assert.Equal(t, string(cat), entries[i].LoggerName)
	}
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core), map[string]bool{"Store": false, "audit": true})

	assert.False(t, l.IsCategoryEnabled(CategoryStore))
	assert.True(t, l.IsCategoryEnabled(CategoryAudit))
	assert.True(t, l.IsCategoryEnabled(CategoryWatch))

	l.Get(CategoryStore).Error("dropped")
	l.Get(CategoryAudit).Info("kept")
	assert.Equal(t, 1, logs.Len())
	assert.Same(t, l.Get(CategoryAudit), l.Get(CategoryAudit))
}

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := Wrap(zap.New(core), nil).With(zap.String("run_id", "r1"))
	l.Get(CategoryBoot).Info("start")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "r1", logs.All()[0].ContextMap()["run_id"])
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)

	l, err := New(Options{Level: "warn", Format: "console", Verbose: true})
	require.NoError(t, err)
	assert.True(t, l.Root().Core().Enabled(zapcore.DebugLevel))

	assert.True(t, ValidLevel("WARNING"))
	assert.False(t, ValidLevel("trace"))
}
