package transport

import (
	"net"
	"strconv"

	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/ports"
)

// PopulateAddressAttrs stores the source and local address details on the
// channel ahead of the request receiver, which reads them when materializing
// the RequestMessage. Proxy-protocol handling (when enabled) overwrites the
// source address before the receiver runs.
func PopulateAddressAttrs(ch ports.Channel) {
	if remote := ch.RemoteAddr(); remote != nil {
		host, _, err := net.SplitHostPort(remote.String())
		if err != nil {
			host = remote.String()
		}
		ch.SetAttr(constants.AttrSourceAddress, host)
	}
	if local := ch.LocalAddr(); local != nil {
		host, portStr, err := net.SplitHostPort(local.String())
		if err == nil {
			if port, perr := strconv.Atoi(portStr); perr == nil {
				ch.SetAttr(constants.AttrLocalPort, port)
			}
			ch.SetAttr(constants.AttrLocalAddress, host)
		} else {
			ch.SetAttr(constants.AttrLocalAddress, local.String())
		}
	}
}
