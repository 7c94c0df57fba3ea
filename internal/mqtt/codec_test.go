package mqtt

import (
	"errors"
	"testing"
)

func TestDecodeBool(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"false", false, false},
		{"TRUE", true, false},
		{" false\n", false, false},
		{"1", false, true},
		{"yes", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		got, err := DecodeBool([]byte(tt.in))
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("DecodeBool(%q): expected ErrInvalidPayload, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("DecodeBool(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if string(EncodeBool(true)) != "true" || string(EncodeBool(false)) != "false" {
		t.Fatalf("EncodeBool mismatch")
	}
}

func TestDecodeFloat(t *testing.T) {
	if v, err := DecodeFloat([]byte(" 21.5 ")); err != nil || v != 21.5 {
		t.Fatalf("DecodeFloat = %v, %v", v, err)
	}
	for _, in := range []string{"", "abc", "NaN", "+Inf", "1e999"} {
		if _, err := DecodeFloat([]byte(in)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("DecodeFloat(%q): expected ErrInvalidPayload, got %v", in, err)
		}
	}
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject([]byte(`{"hysteresisLow": -1}`))
	if err != nil || obj["hysteresisLow"] != -1.0 {
		t.Fatalf("DecodeObject = %v, %v", obj, err)
	}
	for _, in := range []string{"null", "[1,2]", "{", "3"} {
		if _, err := DecodeObject([]byte(in)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("DecodeObject(%q): expected ErrInvalidPayload, got %v", in, err)
		}
	}
}

func TestRouteTopics(t *testing.T) {
	r := Route{ThermostatID: "hall", LocationID: "home", DeviceID: "boiler", SensorID: "T1"}
	cases := map[string]string{
		r.Base():       "v1/home/boiler/T1/",
		r.SetState():   "v1/home/boiler/T1/setState",
		r.State():      "v1/home/boiler/T1/state",
		r.Setpoint():   "v1/home/boiler/T1/aux/setpoint",
		r.AckAlarm():   "v1/home/boiler/T1/aux/ackAlarm",
		r.Settings():   "v1/home/boiler/T1/aux/settings",
		r.SetHeating(): "v1/home/boiler/T1/aux/setHeating",
		r.Alarm():      "v1/home/boiler/T1/aux/alarm",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("topic = %q; want %q", got, want)
		}
	}
}
