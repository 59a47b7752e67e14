package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/parkwise/internal/config"
	"github.com/okian/parkwise/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

const seedYAML = `
garage:
  - sector: A
    base_price: 10.0
    max_capacity: 100
    open_hour: "08:00"
    close_hour: "22:00"
    duration_limit_minutes: 240
  - sector: B
    base_price: 4.5
    max_capacity: 20
spots:
  - {id: 1, sector: A, lat: -23.561684, lng: -46.655981}
  - {sector: B, lat: -23.561685, lng: -46.655982}
`

func TestLoadGarageFile(t *testing.T) {
	convey.Convey("Given a garage seed file", t, func() {
		dir := t.TempDir()

		convey.Convey("When it is YAML", func() {
			path := filepath.Join(dir, "garage.yaml")
			convey.So(os.WriteFile(path, []byte(seedYAML), 0o600), convey.ShouldBeNil)

			g, err := config.LoadGarageFile(path, "BRL")

			convey.So(err, convey.ShouldBeNil)
			convey.So(g.Sectors, convey.ShouldHaveLength, 2)
			convey.So(g.Sectors[0].BasePrice, convey.ShouldResemble, types.NewMoney(1000, "BRL"))
			convey.So(g.Sectors[0].DurationLimitMinutes, convey.ShouldEqual, 240)
			convey.So(g.Sectors[1].BasePrice.Amount, convey.ShouldEqual, 450)
			convey.So(g.Sectors[1].OpenHour, convey.ShouldEqual, "00:00")
			convey.So(g.Spots, convey.ShouldHaveLength, 2)
			convey.So(g.Spots[1].ID, convey.ShouldEqual, 2)
			convey.So(g.Spots[1].SectorID, convey.ShouldEqual, "B")
		})

		convey.Convey("When it is JSON", func() {
			path := filepath.Join(dir, "garage.json")
			doc := `{"garage":[{"sector":"A","base_price":10,"max_capacity":1}],"spots":[{"id":7,"sector":"A","lat":1,"lng":2}]}`
			convey.So(os.WriteFile(path, []byte(doc), 0o600), convey.ShouldBeNil)

			g, err := config.LoadGarageFile(path, "BRL")

			convey.So(err, convey.ShouldBeNil)
			convey.So(g.Spots[0].ID, convey.ShouldEqual, 7)
			convey.So(g.Spots[0].Coordinates, convey.ShouldResemble, types.Coordinates{Lat: 1, Lng: 2})
		})

		convey.Convey("When a spot references an unknown sector", func() {
			_, err := config.ParseGarage([]byte(`{"garage":[{"sector":"A","base_price":1,"max_capacity":1}],"spots":[{"sector":"Z","lat":1,"lng":1}]}`), "BRL")
			convey.So(errors.Is(err, config.ErrInvalidGarage), convey.ShouldBeTrue)
		})

		convey.Convey("When it carries unknown fields", func() {
			_, err := config.ParseGarage([]byte("garage: []\nlevels: 3\n"), "BRL")
			convey.So(errors.Is(err, config.ErrInvalidGarage), convey.ShouldBeTrue)
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.LoadGarageFile(filepath.Join(dir, "missing.yaml"), "BRL")
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}
