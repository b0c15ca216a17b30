package unifs

// Composite is implemented by engines that serve other filesystems.
type Composite interface {
	// Sources returns the filesystems the engine currently delegates to.
	Sources() []FileSystem
}

// DependsOn reports whether fs is target or reaches target through the
// sources of composite engines. Composites use it to refuse cycles.
func DependsOn(fs, target FileSystem) bool {
	seen := make(map[FileSystem]bool)
	var walk func(FileSystem) bool
	walk = func(cur FileSystem) bool {
		if cur == nil || seen[cur] {
			return false
		}
		if cur == target {
			return true
		}
		seen[cur] = true
		if c, ok := cur.(Composite); ok {
			for _, src := range c.Sources() {
				if walk(src) {
					return true
				}
			}
		}
		return false
	}
	return walk(fs)
}
