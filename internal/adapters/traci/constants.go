package traci

// Command, variable and type identifiers of the SUMO TraCI protocol.
const (
	cmdGetVersion = 0x00
	cmdSimStep    = 0x02
	cmdClose      = 0x7f

	cmdGetVehicleVariable     = 0xa4
	cmdGetVehicleTypeVariable = 0xa5
	cmdGetRouteVariable       = 0xa6
	cmdGetSimVariable         = 0xab

	cmdSetVehicleVariable     = 0xc4
	cmdSetVehicleTypeVariable = 0xc5

	// get responses are the get command id + 0x10
	responseOffset = 0x10
)

const (
	varIDList       = 0x00
	varSpeed        = 0x40
	varPosition     = 0x42
	varColor        = 0x45
	varType         = 0x4f
	varTime         = 0x66
	varAcceleration = 0x72
	varAddFull      = 0x85
	varCopy         = 0x88
)

const (
	typePosition2D = 0x01
	typeUbyte      = 0x07
	typeByte       = 0x08
	typeInteger    = 0x09
	typeDouble     = 0x0b
	typeString     = 0x0c
	typeStringList = 0x0e
	typeCompound   = 0x0f
	typeColor      = 0x11
)

const (
	rtypeOK             = 0x00
	rtypeNotImplemented = 0x01
	rtypeErr            = 0xff
)

func commandName(id byte) string {
	switch id {
	case cmdGetVersion:
		return "get version"
	case cmdSimStep:
		return "simulation step"
	case cmdClose:
		return "close"
	case cmdGetVehicleVariable:
		return "get vehicle variable"
	case cmdGetVehicleTypeVariable:
		return "get vehicle type variable"
	case cmdGetRouteVariable:
		return "get route variable"
	case cmdGetSimVariable:
		return "get simulation variable"
	case cmdSetVehicleVariable:
		return "set vehicle variable"
	case cmdSetVehicleTypeVariable:
		return "set vehicle type variable"
	default:
		return "command"
	}
}
