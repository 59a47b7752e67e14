package telemetry

import (
	"context"
	"net/http"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit(t *testing.T) {
	Convey("Given telemetry options with an in-memory exporter", t, func() {
		ctx := context.Background()
		exp := tracetest.NewInMemoryExporter()

		p, err := Init(ctx, Options{ServiceName: "parkwise-test", Environment: "test", Exporter: exp})
		So(err, ShouldBeNil)

		Convey("Spans reach the exporter on flush", func() {
			_, span := p.Tracer.Start(ctx, "garage.process_event")
			span.End()

			So(p.TracerProvider.ForceFlush(ctx), ShouldBeNil)
			spans := exp.GetSpans()
			So(spans, ShouldHaveLength, 1)
			So(spans[0].Name, ShouldEqual, "garage.process_event")
			So(p.Shutdown(ctx), ShouldBeNil)
		})

		Convey("The global propagator carries trace context", func() {
			sctx, span := otel.Tracer("test").Start(ctx, "op")
			defer span.End()

			h := http.Header{}
			otel.GetTextMapPropagator().Inject(sctx, propagation.HeaderCarrier(h))
			So(h.Get("traceparent"), ShouldContainSubstring, span.SpanContext().TraceID().String())
			So(p.Shutdown(ctx), ShouldBeNil)
		})
	})

	Convey("Given no endpoint and no exporter", t, func() {
		p, err := Init(context.Background(), Options{})
		So(err, ShouldBeNil)
		So(p.Shutdown(context.Background()), ShouldBeNil)
	})

	Convey("Shutting down a nil provider is a no-op", t, func() {
		var p *Provider
		So(p.Shutdown(context.Background()), ShouldBeNil)
	})
}
