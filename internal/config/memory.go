package config

// MemoryConfig controls the working memory and halo.
type MemoryConfig struct {
	// MinBelief is the global skepticism threshold for matching (0.1-1.0).
	MinBelief float64 `yaml:"min_belief"`

	// HaloBands is the deepest halo band visible to operator triggers (0-3).
	HaloBands int `yaml:"halo_bands"`

	// GCEvery runs mark-sweep garbage collection every N cycles (0 = off).
	GCEvery int `yaml:"gc_every"`

	// RobotName labels the fixed self node, e.g. "Sam Ahead".
	RobotName string `yaml:"robot_name"`
}

// DefaultMemoryConfig returns working memory defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MinBelief: 0.5,
		HaloBands: 3,
		GCEvery:   1,
		RobotName: "noesis",
	}
}

// StoreConfig controls the long-term memory store.
type StoreConfig struct {
	// DatabasePath is the SQLite file ("" disables long-term memory).
	DatabasePath string `yaml:"database_path"`

	// LoadGhosts pulls stored facts into halo band 1 at startup.
	LoadGhosts bool `yaml:"load_ghosts"`
}

// DefaultStoreConfig returns long-term store defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DatabasePath: "",
		LoadGhosts:   true,
	}
}

// KBConfig locates knowledge files.
type KBConfig struct {
	// Dir holds *.rules, *.ops, *.conf, and *.pref files.
	Dir string `yaml:"dir"`

	// Watch hot-reloads knowledge files when they change on disk.
	Watch bool `yaml:"watch"`

	// Base is the file stem used for saving accumulated knowledge.
	Base string `yaml:"base"`
}

// DefaultKBConfig returns knowledge base defaults.
func DefaultKBConfig() KBConfig {
	return KBConfig{
		Dir:   "kb",
		Watch: false,
		Base:  "kb/accum",
	}
}
