package ptp

import "fmt"

// UnicastPeer is one statically-configured unicast transport-address
// binding: the peer master's clock identity and the address this Port
// should address DELAY_REQ/unicast traffic to. This is a skeleton, not a
// full unicast-negotiation protocol (IEEE 1588 clause 16.1's
// REQUEST_UNICAST_TRANSMISSION grant/renewal exchange remains a
// documented open question) — peers are configured out of band rather
// than negotiated on the wire.
type UnicastPeer struct {
	ClockIdentity [8]byte
	Address       string
}

// AddUnicastPeer registers address as the transport-address a
// unicast-capable profile should use for the master identified by
// identity. It errors on a profile that isn't unicast-capable (spec
// §4.6.1's profile descriptor), since the table only has meaning there.
func (p *Port) AddUnicastPeer(identity [8]byte, address string) error {
	if !p.cfg.Profile.Descriptor().UnicastCapable {
		return fmt.Errorf("ptp: profile %v is not unicast-capable", p.cfg.Profile)
	}
	for i, existing := range p.unicastPeers {
		if existing.ClockIdentity == identity {
			p.unicastPeers[i].Address = address
			return nil
		}
	}
	p.unicastPeers = append(p.unicastPeers, UnicastPeer{ClockIdentity: identity, Address: address})
	return nil
}

// RemoveUnicastPeer drops any transport-address binding for identity.
func (p *Port) RemoveUnicastPeer(identity [8]byte) {
	for i, existing := range p.unicastPeers {
		if existing.ClockIdentity == identity {
			p.unicastPeers = append(p.unicastPeers[:i], p.unicastPeers[i+1:]...)
			return
		}
	}
}

// UnicastPeers returns the currently configured transport-address table.
func (p *Port) UnicastPeers() []UnicastPeer {
	return append([]UnicastPeer(nil), p.unicastPeers...)
}

// unicastPeerKnown reports whether identity has a configured
// transport-address binding.
func (p *Port) unicastPeerKnown(identity [8]byte) bool {
	for _, existing := range p.unicastPeers {
		if existing.ClockIdentity == identity {
			return true
		}
	}
	return false
}
