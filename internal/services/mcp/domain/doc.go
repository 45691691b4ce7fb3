// Package domain translates MCP tool calls into character builds.
//
// Each tool maps one MCP request onto a forge operation and returns a
// structured result that MCP clients can render. Attribute keys travel as
// their rendered strings ("skills.Stealth", "levels.Fighter").
package domain
