package cell

// CalculatedCurrent inverts the terminal-voltage relation for the current,
// given an already-known voltage. This is the same conservation relation the
// residual enforces, so series recovered with it are consistent with any
// demand mode.
func CalculatedCurrent(voltage, ocv, hyst, sumEta, r0 float64) float64 {
	return -(voltage - ocv - hyst + sumEta) / r0
}

// CalculatedVoltage evaluates the terminal-voltage relation explicitly:
// V = OCV(soc) + hysteresis - sum of overpotentials - I*R0.
func CalculatedVoltage(current, ocv, hyst, sumEta, r0 float64) float64 {
	return ocv + hyst - sumEta - current*r0
}
