package iec104

import (
	"bytes"
	"testing"
	"time"
)

func TestCP56Time2a(t *testing.T) {
	//2024-03-05 13:45:12.345,星期二
	ts := Timestamp{Time: time.Date(2024, time.March, 5, 13, 45, 12, 345*int(time.Millisecond), time.UTC)}
	got := appendCP56Time2a(nil, ts, time.UTC)
	want := []byte{0x39, 0x30, 0x2D, 0x0D, 0x45, 0x03, 0x18}
	if !bytes.Equal(got, want) {
		t.Fatalf("got [% X] want [% X]", got, want)
	}
	back := parseCP56Time2a(got, time.UTC)
	if !back.Time.Equal(ts.Time) || back.Invalid || back.Summer {
		t.Fatalf("got %+v want %+v", back, ts)
	}
}

func TestCP56Time2aSunday(t *testing.T) {
	ts := Timestamp{Time: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)}
	got := appendCP56Time2a(nil, ts, time.UTC)
	if dow := got[4] >> 5; dow != 7 {
		t.Fatalf("sunday encoded as %d", dow)
	}
}

func TestCP56Time2aFlagsAndZone(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	ts := Timestamp{Time: time.Date(2024, time.March, 5, 5, 0, 0, 0, time.UTC), Invalid: true, Summer: true}
	got := appendCP56Time2a(nil, ts, loc)
	if got[2]&0x80 == 0 || got[3]&0x80 == 0 {
		t.Fatalf("flags not set: [% X]", got)
	}
	if hour := got[3] & 0x1F; hour != 13 {
		t.Fatalf("expected local hour 13, got %d", hour)
	}
	back := parseCP56Time2a(got, loc)
	if !back.Invalid || !back.Summer || !back.Time.Equal(ts.Time) {
		t.Fatalf("got %+v", back)
	}
}

func TestCP56Time2aZero(t *testing.T) {
	got := appendCP56Time2a(nil, Timestamp{}, time.UTC)
	if !bytes.Equal(got, make([]byte, 7)) {
		t.Fatalf("zero time encoded as [% X]", got)
	}
	if back := parseCP56Time2a(got, time.UTC); !back.Time.IsZero() {
		t.Fatalf("expected zero time, got %v", back.Time)
	}
}

func TestCP24Time2a(t *testing.T) {
	ts := Timestamp{Time: time.Date(2024, time.March, 5, 13, 45, 12, 345*int(time.Millisecond), time.UTC), Invalid: true}
	got := appendCP24Time2a(nil, ts, time.UTC)
	want := []byte{0x39, 0x30, 0xAD}
	if !bytes.Equal(got, want) {
		t.Fatalf("got [% X] want [% X]", got, want)
	}
	back := parseCP24Time2a(got, time.UTC)
	if !back.Invalid || back.Time.Minute() != 45 || back.Time.Second() != 12 || back.Time.Nanosecond() != 345*int(time.Millisecond) {
		t.Fatalf("got %+v", back)
	}
}
