package arena

// LookupEntries returns the number of entries in the address lookup table
func (m *Manager) LookupEntries() int {
	return m.granules.Count()
}
