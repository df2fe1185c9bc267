//go:build linux

package linkstate

import (
	"encoding/binary"
	"fmt"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
)

// Generic-netlink TEAM family commands/attributes (linux/if_team.h). Only
// what's needed to discover a team's active port is named.
const (
	teamFamilyName = "team"

	teamCmdPortList = 3 // TEAM_CMD_PORT_LIST_GET

	teamAttrListPort   = 3 // TEAM_ATTR_LIST_PORT
	teamAttrPortItem   = 1 // TEAM_ATTR_ITEM_PORT
	teamAttrPortIfindex = 1 // TEAM_ATTR_PORT_IFINDEX
	teamAttrPortChanged = 2 // TEAM_ATTR_PORT_CHANGED
	teamAttrPortLinkUp = 3 // TEAM_ATTR_PORT_LINKUP
)

// TeamClient resolves and queries the "team" generic-netlink family for
// active-port discovery on software team devices (spec §3's
// Link.ActiveSlave for Kind == KindTeam).
type TeamClient struct {
	conn   *genetlink.Conn
	family genetlink.Family
}

// DialTeam resolves the team generic-netlink family. A resolution failure
// (kernel built without team support) is non-fatal to the caller: team
// links simply never populate ActiveSlave.
func DialTeam() (*TeamClient, error) {
	conn, err := genetlink.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("linkstate: dial genetlink: %w", err)
	}
	family, err := conn.GetFamily(teamFamilyName)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("linkstate: resolve team family: %w", err)
	}
	return &TeamClient{conn: conn, family: family}, nil
}

// Close releases the underlying genetlink connection.
func (c *TeamClient) Close() error { return c.conn.Close() }

// ActivePort returns the ifindex of the first link-up port found for the
// team device teamIfindex, or 0 if none qualifies. Team devices (unlike
// bonds) don't expose a single "active slave" concept uniformly across all
// port-select modes, so this is an approximation: the first up port stands
// in for "active".
func (c *TeamClient) ActivePort(teamIfindex int32) (int32, error) {
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, uint32(teamIfindex))

	req := genetlink.Message{
		Header: genetlink.Header{Command: teamCmdPortList, Version: c.family.Version},
		Data:   encodeAttr(1 /* TEAM_ATTR_TEAM_IFINDEX */, body),
	}

	replies, err := c.conn.Execute(req, c.family.ID, netlink.Request)
	if err != nil {
		return 0, fmt.Errorf("linkstate: team port list for ifindex %d: %w", teamIfindex, err)
	}

	for _, reply := range replies {
		for _, outer := range parseAttrs(reply.Data) {
			if outer.Type != teamAttrListPort {
				continue
			}
			for _, item := range parseAttrs(outer.Value) {
				if item.Type != teamAttrPortItem {
					continue
				}
				port := parseAttrs(item.Value)
				ifindex, _ := attrU32(port, teamAttrPortIfindex)
				// TEAM_ATTR_PORT_LINKUP is a flag attribute: present
				// (with no payload) when the port's link is up.
				up := false
				for _, a := range port {
					if a.Type == teamAttrPortLinkUp {
						up = true
					}
				}
				if ifindex != 0 && up {
					return int32(ifindex), nil
				}
			}
		}
	}
	return 0, nil
}
