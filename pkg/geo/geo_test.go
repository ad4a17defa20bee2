package geo

import (
	"testing"

	"github.com/roofdispatch/roofdispatch/pkg/model"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	c.Set("12 Main St, Mesa, 85201", model.Coordinate{Lat: 33.41, Lng: -111.83})

	if _, ok := c.Coordinate("12  main st, MESA, 85201"); !ok {
		t.Error("lookup should ignore case and spacing")
	}
	if _, ok := c.Coordinate("missing"); ok {
		t.Error("lookup of unknown address should miss")
	}
	c.Set("", model.Coordinate{})
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestHomeAndJobCoordinate(t *testing.T) {
	c := NewMemoryCache()
	c.Set("85201", model.Coordinate{Lat: 33.41, Lng: -111.83})
	c.Set("1 Elm, Tempe, 85281", model.Coordinate{Lat: 33.42, Lng: -111.94})

	rep := &model.Representative{PostalCodes: []string{"85201", "85203"}}
	if _, ok := HomeCoordinate(c, rep); !ok {
		t.Error("HomeCoordinate() should resolve canonical postal code")
	}
	if _, ok := HomeCoordinate(c, &model.Representative{}); ok {
		t.Error("rep without postal codes has no home")
	}

	job := &model.Job{Address: "1 Elm", City: "Tempe", PostalCode: "85281"}
	if _, ok := JobCoordinate(c, job); !ok {
		t.Error("JobCoordinate() should resolve full address")
	}
	if _, ok := JobCoordinate(None{}, job); ok {
		t.Error("None should never resolve")
	}
}

func TestAddresses(t *testing.T) {
	state := model.NewDayState("2024-06-03", []*model.Representative{
		{ID: "r1", PostalCodes: []string{"85201"}},
		{ID: "r2", PostalCodes: []string{"85201"}},
	}, model.DefaultSettings())
	state.Unassigned = []*model.Job{
		{ID: "j1", Address: "1 Elm", City: "Tempe"},
		{ID: "j2", Address: "1 elm", City: "tempe"},
	}

	addrs := Addresses(state)
	if len(addrs) != 2 {
		t.Errorf("Addresses() = %v, want 2 unique entries", addrs)
	}
}
