package wasm

// ToolLimits bounds a single WASM invocation: an instruction-count budget
// ("fuel"), a memory ceiling, and the table-growth ceiling derived from it.
type ToolLimits struct {
	Fuel             uint64
	MemoryBytes      uint32
	MaxTableElements uint32
}

// pointerWidth is the guest pointer size assumed for max_table_elements
// derivation; wazero's wasm32 ABI uses 4-byte pointers, but the resource
// budget this is ported from (wasmtime, 64-bit host) used 8. Kept at 8 to
// match the reference limits table exactly.
const pointerWidth = 8

func withDerivedTableLimit(fuel uint64, memoryBytes uint32) ToolLimits {
	return ToolLimits{
		Fuel:             fuel,
		MemoryBytes:      memoryBytes,
		MaxTableElements: memoryBytes / pointerWidth,
	}
}

// DefaultToolLimits is applied to any tool without an explicit override.
var DefaultToolLimits = withDerivedTableLimit(1_000_000, 16*1024*1024)

// toolLimitOverrides holds the per-tool resource budgets named in the
// reference limits table.
var toolLimitOverrides = map[string]ToolLimits{
	"calc":       withDerivedTableLimit(100_000, 2*1024*1024),
	"web_fetch":  withDerivedTableLimit(10_000_000, 32*1024*1024),
	"web_search": withDerivedTableLimit(10_000_000, 32*1024*1024),
	"show_map":   withDerivedTableLimit(10_000_000, 64*1024*1024),
	"location":   withDerivedTableLimit(5_000_000, 16*1024*1024),
}

// LimitsFor returns the resource budget for a named tool, falling back to
// DefaultToolLimits when no override is registered.
func LimitsFor(toolName string) ToolLimits {
	if l, ok := toolLimitOverrides[toolName]; ok {
		return l
	}
	return DefaultToolLimits
}

// MemoryPages converts a byte ceiling to wazero's 64KB page unit.
func (l ToolLimits) MemoryPages() uint32 {
	const pageSize = 64 * 1024
	return l.MemoryBytes / pageSize
}
