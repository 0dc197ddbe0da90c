package scrape

import "regexp"

// Call-quality counters printed by "show call active voice".
var (
	CallID                = NewField("CallID", `\bCallID=([^\s,]*)`)
	RemoteMediaIPAddress  = NewField("RemoteMediaIPAddress", `RemoteMediaIPAddress=([^\s,]*)`)
	ReceiveDelay          = NewField("ReceiveDelay (ms)", `ReceiveDelay=(\d+)\s*ms`)
	TransmitPackets       = NewField("TransmitPackets", `TransmitPackets=([^\s,]*)`)
	ReceivePackets        = NewField("ReceivePackets", `ReceivePackets=([^\s,]*)`)
	LostPackets           = NewField("LostPackets", `LostPackets=([^\s,]*)`)
	EarlyPackets          = NewField("EarlyPackets", `EarlyPackets=([^\s,]*)`)
	LatePackets           = NewField("LatePackets", `LatePackets=([^\s,]*)`)
	OriginalCallingNumber = NewField("OriginalCallingNumber", `OriginalCallingNumber=([^\s,]*)`)
)

// CallQualityFields is the column order of the call-quality log.
var CallQualityFields = []Field{
	CallID, RemoteMediaIPAddress, ReceiveDelay, TransmitPackets, ReceivePackets,
	LostPackets, EarlyPackets, LatePackets, OriginalCallingNumber,
}

// CallQualityFilter narrows "show call active voice" to the lines holding
// CallQualityFields.
const CallQualityFilter = "CallID|RemoteMediaIPAddress|ReceiveDelay|TransmitPackets|ReceivePackets|LostPackets|EarlyPackets|LatePackets|OriginalCallingNumber"

// Leg is one call leg; Values follow CallQualityFields.
type Leg struct {
	Values []string
}

// CallID returns the leg's call identifier.
func (l Leg) CallID() string { return l.Values[0] }

var legStart = regexp.MustCompile(`\bCallID=`)

// CallLegs splits output into one leg per CallID so that a field missing from
// one leg never shifts values of the next. Missing fields are empty strings.
func CallLegs(text string) []Leg {
	starts := legStart.FindAllStringIndex(text, -1)
	legs := make([]Leg, 0, len(starts))
	for i, s := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		segment := text[s[0]:end]
		values := make([]string, len(CallQualityFields))
		for j, f := range CallQualityFields {
			values[j] = FirstOr(segment, f, "")
		}
		legs = append(legs, Leg{Values: values})
	}
	return legs
}
