package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryCountDesc = prometheus.NewDesc(
		"directdict_dictionary_queries_total",
		"Rows requested from a dictionary.",
		[]string{"dictionary"}, nil,
	)
	bytesAllocatedDesc = prometheus.NewDesc(
		"directdict_dictionary_bytes_allocated",
		"Bytes held by a dictionary, its attribute null values only.",
		[]string{"dictionary"}, nil,
	)
	elementCountDesc = prometheus.NewDesc(
		"directdict_dictionary_elements",
		"Elements stored by a dictionary, always 0 for direct dictionaries.",
		[]string{"dictionary"}, nil,
	)
	hitRateDesc = prometheus.NewDesc(
		"directdict_dictionary_hit_rate",
		"Fraction of lookups served without the source.",
		[]string{"dictionary"}, nil,
	)
	loadedDesc = prometheus.NewDesc(
		"directdict_dictionaries_loaded",
		"Dictionaries in the catalog.",
		nil, nil,
	)
)

// Collector exports per dictionary statistics, read at scrape time.
type Collector struct {
	catalog *Catalog
}

func NewCollector(c *Catalog) *Collector {
	return &Collector{catalog: c}
}

func (col *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- queryCountDesc
	ch <- bytesAllocatedDesc
	ch <- elementCountDesc
	ch <- hitRateDesc
	ch <- loadedDesc
}

func (col *Collector) Collect(ch chan<- prometheus.Metric) {
	dicts := col.catalog.Dictionaries()
	ch <- prometheus.MustNewConstMetric(loadedDesc, prometheus.GaugeValue, float64(len(dicts)))
	for _, d := range dicts {
		name := d.FullName()
		ch <- prometheus.MustNewConstMetric(queryCountDesc, prometheus.CounterValue, float64(d.QueryCount()), name)
		ch <- prometheus.MustNewConstMetric(bytesAllocatedDesc, prometheus.GaugeValue, float64(d.BytesAllocated()), name)
		ch <- prometheus.MustNewConstMetric(elementCountDesc, prometheus.GaugeValue, float64(d.ElementCount()), name)
		ch <- prometheus.MustNewConstMetric(hitRateDesc, prometheus.GaugeValue, d.HitRate(), name)
	}
}
