package statussource

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	require.Equal(t, Kind(""), Classify(nil))
	require.Equal(t, KindTransport, Classify(errors.New("dial tcp: refused")))
	require.Equal(t, KindUnauthorized, Classify(errors.Wrap(ErrUnauthorized, "fetch")))
	require.Equal(t, KindRateLimited, Classify(fmt.Errorf("quota: %w", ErrRateLimited)))
	require.Equal(t, KindDecode, Classify(DecodeError(errors.New("unexpected EOF"))))
	require.Equal(t, KindDecode, Classify(errors.Wrap(DecodeError(errors.New("x")), "fetch")))
}

func TestDecodeError_Message(t *testing.T) {
	err := DecodeError(errors.New("unexpected EOF"))
	require.Contains(t, err.Error(), "malformed response")
	require.Contains(t, err.Error(), "unexpected EOF")
}
