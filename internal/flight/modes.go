package flight

import "fmt"

// MAV_TYPE values describing ground stations and other non-vehicle
// components are not mapped; metadata keeps the raw number for those.
var vehicleTypeNames = map[int64]string{
	1:  "Fixed Wing",
	2:  "Quadrotor",
	4:  "Helicopter",
	10: "Ground Rover",
	11: "Surface Boat",
	12: "Submarine",
	13: "Hexarotor",
	14: "Octorotor",
	15: "Tricopter",
}

var copterModes = map[int64]string{
	0:  "STABILIZE",
	1:  "ACRO",
	2:  "ALT_HOLD",
	3:  "AUTO",
	4:  "GUIDED",
	5:  "LOITER",
	6:  "RTL",
	7:  "CIRCLE",
	9:  "LAND",
	11: "DRIFT",
	13: "SPORT",
	14: "FLIP",
	15: "AUTOTUNE",
	16: "POSHOLD",
	17: "BRAKE",
	18: "THROW",
	20: "GUIDED_NOGPS",
	21: "SMART_RTL",
	22: "FLOWHOLD",
	23: "FOLLOW",
	24: "ZIGZAG",
}

var planeModes = map[int64]string{
	0:  "MANUAL",
	1:  "CIRCLE",
	2:  "STABILIZE",
	3:  "TRAINING",
	4:  "ACRO",
	5:  "FBWA",
	6:  "FBWB",
	7:  "CRUISE",
	8:  "AUTOTUNE",
	10: "AUTO",
	11: "RTL",
	12: "LOITER",
	15: "GUIDED",
	17: "QSTABILIZE",
	19: "QLOITER",
	20: "QLAND",
	21: "QRTL",
}

var roverModes = map[int64]string{
	0:  "MANUAL",
	1:  "ACRO",
	3:  "STEERING",
	4:  "HOLD",
	5:  "LOITER",
	10: "AUTO",
	11: "RTL",
	12: "SMART_RTL",
	15: "GUIDED",
}

// VehicleTypeName maps a MAV_TYPE value to a readable vehicle name, or
// "TYPE(<n>)" when the value is not a known vehicle.
func VehicleTypeName(mavType int64) string {
	if name, ok := vehicleTypeNames[mavType]; ok {
		return name
	}
	return fmt.Sprintf("TYPE(%d)", mavType)
}

// modeName maps an ArduPilot custom mode number to its name. The table is
// picked by MAV_TYPE when the source message carries one (HEARTBEAT);
// DataFlash MODE records carry no vehicle type and use the copter table,
// which covers the vast majority of ingested logs. Unknown numbers fall back
// to "MODE(<n>)" so the raw value is never lost.
func modeName(mavType, mode int64) string {
	table := copterModes
	switch mavType {
	case 1: // fixed wing
		table = planeModes
	case 10, 11: // rover, boat
		table = roverModes
	}

	if name, ok := table[mode]; ok {
		return name
	}
	return fmt.Sprintf("MODE(%d)", mode)
}
