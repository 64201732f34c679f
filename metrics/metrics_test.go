package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordExpansion(t *testing.T) {
	before := testutil.ToFloat64(ExpansionTotal.WithLabelValues("activated"))
	RecordExpansion("activated")
	assert.InDelta(t, before+1, testutil.ToFloat64(ExpansionTotal.WithLabelValues("activated")), 1e-9)
}

func TestRecordTrain(t *testing.T) {
	RecordTrain(time.Second, 42, nil)
	assert.InDelta(t, 42, testutil.ToFloat64(CatalogSize), 1e-9)

	// 失败的训练不更新目录大小
	RecordTrain(time.Second, 7, errors.New("boom"))
	assert.InDelta(t, 42, testutil.ToFloat64(CatalogSize), 1e-9)
}

func TestRecordUpstreamError(t *testing.T) {
	before := testutil.ToFloat64(UpstreamErrorsTotal.WithLabelValues("load_movies"))
	RecordUpstreamError("load_movies")
	assert.InDelta(t, before+1, testutil.ToFloat64(UpstreamErrorsTotal.WithLabelValues("load_movies")), 1e-9)
}
