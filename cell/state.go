package cell

import "fmt"

// TransientState is a user-facing snapshot of the independent state
// variables. Temperature is in physical kelvin; the nondimensionalization
// used inside the state vector is applied by PackState/UnpackState.
//
// The derived terminal voltage is only present on states produced by a
// prediction step; user-authored states report no voltage.
type TransientState struct {
	SOC  float64   // state of charge [-]
	Temp float64   // cell temperature [K]
	Hyst float64   // hysteresis voltage [V]
	EtaJ []float64 // RC-pair overpotentials [V]

	voltage    float64
	hasVoltage bool
}

// NumRCPairs returns the number of overpotentials the state carries.
func (s TransientState) NumRCPairs() int { return len(s.EtaJ) }

// Voltage returns the predicted terminal voltage and whether one is present.
func (s TransientState) Voltage() (float64, bool) {
	return s.voltage, s.hasVoltage
}

// Predicted returns a copy of the state with the derived terminal voltage
// attached. It is set by the prediction stepper after integrating a step;
// there is no reason to call it on a user-authored state.
func (s TransientState) Predicted(voltage float64) TransientState {
	out := s.clone()
	out.voltage = voltage
	out.hasVoltage = true
	return out
}

func (s TransientState) clone() TransientState {
	out := s
	out.EtaJ = append([]float64(nil), s.EtaJ...)
	return out
}

// PackState converts a TransientState into a flat state vector laid out by l.
// A state whose overpotential count does not match the model configuration is
// rejected. The DAE voltage slot, when present, is filled with the rested
// terminal voltage so a consistent-initialization solve starts nearby.
func (p Params) PackState(s TransientState, l Layout) ([]float64, error) {
	if s.NumRCPairs() != l.NumRCPairs() {
		return nil, fmt.Errorf("state has %d overpotentials but the model is configured for %d RC pairs",
			s.NumRCPairs(), l.NumRCPairs())
	}

	sv := make([]float64, l.Size())
	sv[l.SOC()] = s.SOC
	sv[l.Temp()] = s.Temp / p.TInf
	sv[l.Hyst()] = s.Hyst

	sumEta := 0.0
	for j := 1; j <= l.NumRCPairs(); j++ {
		sv[l.Eta(j)] = s.EtaJ[j-1]
		sumEta += s.EtaJ[j-1]
	}

	if l.Kind() == DAE {
		sv[l.Voltage()] = CalculatedVoltage(0, p.OCV(s.SOC), s.Hyst, sumEta, 1)
	}
	return sv, nil
}

// UnpackState converts a flat state vector back into a TransientState,
// restoring the temperature to kelvin.
func (p Params) UnpackState(sv []float64, l Layout) (TransientState, error) {
	if len(sv) != l.Size() {
		return TransientState{}, fmt.Errorf("state vector has length %d, layout requires %d",
			len(sv), l.Size())
	}

	s := TransientState{
		SOC:  sv[l.SOC()],
		Temp: sv[l.Temp()] * p.TInf,
		Hyst: sv[l.Hyst()],
		EtaJ: make([]float64, l.NumRCPairs()),
	}
	for j := 1; j <= l.NumRCPairs(); j++ {
		s.EtaJ[j-1] = sv[l.Eta(j)]
	}
	return s, nil
}

// RestedState returns the rested initial condition at the configured SOC0:
// ambient temperature, no hysteresis, relaxed overpotentials.
func (p Params) RestedState() TransientState {
	return TransientState{
		SOC:  p.SOC0,
		Temp: p.TInf,
		Hyst: 0,
		EtaJ: make([]float64, p.NumRCPairs),
	}
}
