package state

import (
	"testing"

	"github.com/teslamon/teslamon/core/model"
)

func snapshot(shift *string, speed *float64, charging string) *model.VehicleData {
	return &model.VehicleData{
		DisplayName: "Bellwood Auto",
		DriveState:  model.DriveState{ShiftState: shift, Speed: speed},
		ChargeState: model.ChargeState{ChargingState: charging},
	}
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func TestClassify_MotionWins(t *testing.T) {
	for _, shift := range []string{"R", "D", "N"} {
		st := Classify(snapshot(strPtr(shift), nil, "Charging"))
		if st.Kind != Driving {
			t.Fatalf("shift=%s: expected Driving, got %s", shift, st.Kind)
		}
	}
	// Positive speed reads as Driving even with charge-port data reported.
	st := Classify(snapshot(nil, f64Ptr(12.5), "Charging"))
	if st.Kind != Driving {
		t.Fatalf("expected Driving on speed>0, got %s", st.Kind)
	}
}

func TestClassify_ParkedWhenDisconnected(t *testing.T) {
	st := Classify(snapshot(nil, nil, "Disconnected"))
	if st.Kind != Parked {
		t.Fatalf("expected Parked, got %s", st.Kind)
	}
	if st.Data == nil {
		t.Fatalf("expected snapshot reference on Parked")
	}
}

func TestClassify_ChargingOtherwise(t *testing.T) {
	for _, charging := range []string{"Charging", "Complete", "Stopped"} {
		st := Classify(snapshot(strPtr("P"), nil, charging))
		if st.Kind != Charging {
			t.Fatalf("charging_state=%s: expected Charging, got %s", charging, st.Kind)
		}
	}
}

func TestClassify_MissingFieldsReadAsNotMoving(t *testing.T) {
	// A snapshot with only charge data must still classify.
	st := Classify(&model.VehicleData{ChargeState: model.ChargeState{ChargingState: "Disconnected"}})
	if st.Kind != Parked {
		t.Fatalf("expected Parked on null shift/speed, got %s", st.Kind)
	}
}

func TestKind_Codes(t *testing.T) {
	cases := map[Kind]int{Unknown: 0, Parked: 1, Charging: 2, Driving: 3}
	for k, want := range cases {
		if k.Code() != want {
			t.Fatalf("%s: expected code %d, got %d", k, want, k.Code())
		}
	}
}
