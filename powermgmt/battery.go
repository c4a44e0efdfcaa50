package powermgmt

// Battery voltage divider and ADC calibration of the board.
const (
	adcMax       = 4095
	adcReference = 3.3 // V
	dividerR1    = 20_000.0
	dividerR2    = 10_000.0

	// Linear correction measured against a multimeter.
	calibrationSlope     = 0.878
	calibrationIntercept = -0.010
)

// BatteryVoltage converts a raw 12-bit ADC reading of the divider into the
// calibrated battery voltage.
func BatteryVoltage(raw uint16) float32 {
	atPin := float32(raw) / adcMax * adcReference
	battery := atPin / (dividerR1 / (dividerR1 + dividerR2))
	return calibrationSlope*battery + calibrationIntercept
}
