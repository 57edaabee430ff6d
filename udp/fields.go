// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

package udp

import (
	"github.com/sweepnet/sweep/fieldset"
	"github.com/sweepnet/sweep/packet"
)

// Shared field groups. Every module that uses them keeps these exact names
// so records from different protocol modules stay schema compatible.

// ClassificationFieldDefs is the classification/success pair every module
// declares after its protocol-specific port fields.
var ClassificationFieldDefs = fieldset.Schema{
	{Name: "classification", Kind: fieldset.KindString, Desc: "packet classification"},
	{Name: "success", Kind: fieldset.KindBool, Desc: "is response considered success"},
}

// ICMPFieldDefs are the network-layer-error descriptive fields shared by all
// IP-based modules.
var ICMPFieldDefs = fieldset.Schema{
	{Name: "icmp_responder", Kind: fieldset.KindString, Desc: "source IP of the ICMP error"},
	{Name: "icmp_type", Kind: fieldset.KindUint, Desc: "ICMP message type"},
	{Name: "icmp_code", Kind: fieldset.KindUint, Desc: "ICMP message code"},
	{Name: "icmp_unreach_str", Kind: fieldset.KindString, Desc: "destination-unreachable class"},
}

// AddICMPFields populates the shared ICMP field group from an ICMP error
// frame. ip must already have passed validation with an ICMP protocol.
func AddICMPFields(fs *fieldset.FieldSet, ip packet.IPv4Frame) {
	icmpf, err := packet.NewICMPv4Frame(ip.Payload())
	if err != nil {
		// validation guarantees this cannot happen; keep the record complete
		AddICMPNulls(fs)
		return
	}
	fs.AddString("icmp_responder", ip.Src().String())
	fs.AddUint("icmp_type", uint64(icmpf.Type()))
	fs.AddUint("icmp_code", uint64(icmpf.Code()))
	if icmpf.Type() == packet.ICMPv4TypeDestinationUnreachable {
		fs.AddString("icmp_unreach_str", packet.UnreachableString(icmpf.Code()))
	} else {
		fs.AddString("icmp_unreach_str", "unknown")
	}
}

// AddICMPNulls assigns explicit nulls to the shared ICMP field group, for
// the primary-protocol success branch.
func AddICMPNulls(fs *fieldset.FieldSet) {
	fs.AddNull("icmp_responder")
	fs.AddNull("icmp_type")
	fs.AddNull("icmp_code")
	fs.AddNull("icmp_unreach_str")
}
