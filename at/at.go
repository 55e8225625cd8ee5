package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = "> "

	// Success Result Codes
	OK      = "OK"
	SendOK  = "SEND OK"
	CloseOK = "CLOSE OK"
	ShutOK  = "SHUT OK"

	// Failure Result Codes
	ERROR       = "ERROR"
	SendFail    = "SEND FAIL"
	ConnectFail = "CONNECT FAIL"
	NoCarrier   = "NO CARRIER"
	NoDialtone  = "NO DIALTONE"
	Busy        = "BUSY"
	NoAnswer    = "NO ANSWER"
	CmeError    = "+CME ERROR:"
	CmsError    = "+CMS ERROR:"

	// URCs (Unsolicited Result Codes)
	UrcCall      = "RING"
	UrcReady     = "RDY"
	UrcCallReady = "Call Ready"
	UrcSMSReady  = "SMS Ready"
	UrcPowerDown = "NORMAL POWER DOWN"
	UrcDataInd   = "+CADATAIND:"
	UrcAppPDP    = "+APP PDP:"

	// SIM states
	SimReady = "READY"
)

// Commands. Bit-exact, the modem firmware matches them verbatim.
const (
	CmdAt          = "AT"
	CmdSimStatus   = "AT+CPIN?"
	CmdRegStatus   = "AT+CREG?"
	CmdAttachQuery = "AT+CGATT?"
	CmdAttach      = "AT+CGATT=1"
	CmdDetach      = "AT+CGATT=0"
	CmdSignal      = "AT+CSQ"
	CmdBattery     = "AT+CBC"
	CmdRadioOff    = "AT+CFUN=0"
	CmdRadioOn     = "AT+CFUN=1"
	CmdPowerOff    = "AT+CPOWD=1"

	CmdGNSSPowerOff = "AT+CGNSPWR=0"
	CmdGNSSPowerOn  = "AT+CGNSPWR=1"
	CmdGNSSInfo     = "AT+CGNSINF"
)

// Structured reply prefixes.
const (
	PrefixSignal   = "+CSQ"
	PrefixBattery  = "+CBC"
	PrefixReg      = "+CREG"
	PrefixAttach   = "+CGATT"
	PrefixSIM      = "+CPIN"
	PrefixGNSS     = "+CGNSINF"
	PrefixCARECV   = "+CARECV"
	PrefixCASTATE  = "+CASTATE"
	PrefixCIPRXGET = "+CIPRXGET"
	PrefixState    = "STATE:"
)

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR, SEND OK, ...
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CSQ: ...)
	TypePrompt                     // Data entry prompt
	TypeEcho                       // Command echo (ATE1)
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeURC:
		return "urc"
	case TypeData:
		return "data"
	case TypePrompt:
		return "prompt"
	case TypeEcho:
		return "echo"
	default:
		return "unknown"
	}
}
