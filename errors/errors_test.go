package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapFormatsContext(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "Router", "Route", "handler lookup")

	require.Error(t, err)
	assert.Equal(t, "Router.Route: handler lookup failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "Router", "Route", "anything"))
	assert.NoError(t, WrapInvalid(nil, "Router", "Route", "anything"))
	assert.NoError(t, WrapTransient(nil, "Router", "Route", "anything"))
	assert.NoError(t, WrapFatal(nil, "Router", "Route", "anything"))
}

func TestClassifiedErrorUnwraps(t *testing.T) {
	err := WrapInvalid(ErrChecksumFailed, "Manager", "assemble", "checksum verification")

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrChecksumFailed))

	var ce *ClassifiedError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, ErrorInvalid, ce.Class)
	assert.Equal(t, "Manager", ce.Component)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"checksum failure is invalid", ErrChecksumFailed, ErrorInvalid},
		{"frame validation is invalid", ErrFrameInvalid, ErrorInvalid},
		{"transport closed is fatal", ErrTransportClosed, ErrorFatal},
		{"expired transfer is transient", ErrTransferExpired, ErrorTransient},
		{"unknown error defaults to transient", stderrors.New("mystery"), ErrorTransient},
		{"wrapped fatal stays fatal", WrapFatal(stderrors.New("x"), "c", "m", "a"), ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassPredicatesRejectNil(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsFatal(nil))
}

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}
