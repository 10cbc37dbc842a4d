package otel

import (
	"context"
	"errors"
	"fmt"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no snapshot source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

type latencyInstruments struct {
	id      goIdentity.MetricID
	buckets [goIdentity.HistogramBucketCount]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

type stateInstrument struct {
	def        internaldefs.StateDef
	instrument metric.Int64Observable
}

// OTelExporter publishes engine snapshots through observable instruments.
//
// OpenTelemetry has no observable histogram, so each latency histogram is
// exported as one cumulative gauge per bucket plus a count gauge.
type OTelExporter struct {
	source       internaldefs.Source
	registration metric.Registration
	counters     map[goIdentity.MetricID]metric.Int64ObservableCounter
	latency      []latencyInstruments
	state        []stateInstrument
	observables  []metric.Observable
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *goIdentity.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments on meter that read from source.
//
// All instruments share one callback, so a collection cycle observes a single snapshot.
func NewOTelExporterFromSource(meter metric.Meter, source internaldefs.Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[goIdentity.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	if err := e.registerCounters(meter); err != nil {
		return nil, err
	}
	if err := e.registerLatency(meter); err != nil {
		return nil, err
	}
	if err := e.registerState(meter); err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(e.observe, e.observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) registerCounters(meter metric.Meter) error {
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = ins
		e.observables = append(e.observables, ins)
	}
	return nil
}

func (e *OTelExporter) registerLatency(meter metric.Meter) error {
	for _, def := range internaldefs.HistogramDefs {
		li := latencyInstruments{id: def.ID}
		for i := range li.buckets {
			name := def.Name + "_bucket_le_" + internaldefs.HistogramBoundSuffix[i]
			ins, err := meter.Int64ObservableGauge(name,
				metric.WithDescription(def.Help+" Cumulative bucket count."),
				metric.WithUnit("{request}"),
			)
			if err != nil {
				return fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			li.buckets[i] = ins
			e.observables = append(e.observables, ins)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return fmt.Errorf("create histogram count gauge %s_count: %w", def.Name, err)
		}
		li.count = count
		e.observables = append(e.observables, count)
		e.latency = append(e.latency, li)
	}
	return nil
}

func (e *OTelExporter) registerState(meter metric.Meter) error {
	for _, def := range internaldefs.StateDefs {
		var (
			ins metric.Int64Observable
			err error
		)
		switch def.Kind {
		case internaldefs.StateGauge:
			ins, err = meter.Int64ObservableGauge(def.Name, metric.WithDescription(def.Help))
		default:
			ins, err = meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		}
		if err != nil {
			return fmt.Errorf("create state instrument %s: %w", def.Name, err)
		}
		e.state = append(e.state, stateInstrument{def: def, instrument: ins})
		e.observables = append(e.observables, ins)
	}
	return nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for id, ins := range e.counters {
		observer.ObserveInt64(ins, int64(snapshot.Counters[id]))
	}
	for _, li := range e.latency {
		raw, ok := snapshot.Histograms[li.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, v := range cumulative {
			observer.ObserveInt64(li.buckets[i], int64(v))
		}
		observer.ObserveInt64(li.count, int64(cumulative[len(cumulative)-1]))
	}

	state := internaldefs.ReadState(e.source)
	for _, s := range e.state {
		observer.ObserveInt64(s.instrument, s.def.Value(state))
	}
	return nil
}

// Close unregisters the callback. Instruments stay registered on the meter but report nothing.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
