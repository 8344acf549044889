package orders

import (
	"testing"
	"time"
)

func TestOrderDuration_StringAndBack(t *testing.T) {
	cases := []struct {
		duration OrderDuration
		str      string
	}{
		{OrderDurationGoodTilCanceled, "goodTilCanceled"},
		{OrderDurationDay, "day"},
		{OrderDurationGoodTilDate, "goodTilDate"},
	}
	for _, tc := range cases {
		if got := tc.duration.String(); got != tc.str {
			t.Errorf("String() = %q, want %q", got, tc.str)
		}
		parsed, err := OrderDurationFromString(tc.str)
		if err != nil {
			t.Fatalf("OrderDurationFromString(%q): %v", tc.str, err)
		}
		if parsed != tc.duration {
			t.Errorf("round trip of %q = %v, want %v", tc.str, parsed, tc.duration)
		}
	}
	if _, err := OrderDurationFromString("fillOrKill"); err == nil {
		t.Error("expected error for unsupported duration")
	}
}

func TestOrderDuration_JSON(t *testing.T) {
	data, err := OrderDurationDay.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `"day"` {
		t.Errorf("marshaled = %s, want \"day\"", data)
	}
	var od OrderDuration
	if err := od.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if od != OrderDurationDay {
		t.Errorf("unmarshaled = %v, want day", od)
	}
	if err := od.UnmarshalJSON([]byte(`"bogus"`)); err == nil {
		t.Error("expected error for unsupported duration json")
	}
}

func TestNewOrder_CarriesTimeInForce(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	req := NewSubmitOrderRequest(1, "ES", 10, OrderKindMarket, time.Now())
	req.Duration = OrderDurationGoodTilDate
	req.DurationValue = expiry

	o, err := NewOrder(req)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if o.Duration != OrderDurationGoodTilDate {
		t.Errorf("duration = %v, want goodTilDate", o.Duration)
	}
	if !o.DurationValue.Equal(expiry) {
		t.Errorf("duration value = %v, want %v", o.DurationValue, expiry)
	}

	clone := o.Clone()
	if clone.Duration != o.Duration || !clone.DurationValue.Equal(o.DurationValue) {
		t.Error("clone must carry the time in force")
	}
}

func TestNewOrder_GoodTilDateRequiresExpiry(t *testing.T) {
	req := NewSubmitOrderRequest(1, "ES", 10, OrderKindMarket, time.Now())
	req.Duration = OrderDurationGoodTilDate

	if _, err := NewOrder(req); err == nil {
		t.Fatal("expected error for good-til-date without an expiry")
	}
}

func TestNewOrder_DefaultsToGoodTilCanceled(t *testing.T) {
	req := NewSubmitOrderRequest(1, "ES", 10, OrderKindMarket, time.Now())
	o, err := NewOrder(req)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if o.Duration != OrderDurationGoodTilCanceled {
		t.Errorf("duration = %v, want the good-til-canceled default", o.Duration)
	}
}
