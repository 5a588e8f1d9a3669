package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveUpstream(t *testing.T) {
	ok := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("chat", "ok"))
	failed := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("chat", "error"))

	ObserveUpstream("chat", nil)
	ObserveUpstream("chat", errors.New("boom"))
	ObserveUpstream("chat", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("chat", "ok")))
	assert.Equal(t, failed+2, testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues("chat", "error")))
}
