package fetch

import (
	"screwdata/lib/restyutil"
	"screwdata/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

var tracer = telemetry.Tracer("screwdata.lib.fetch")

var client = resty.New()

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	client = resty.New()
	restyutil.InstrumentClient(client, tracer, out)
}
