package domain

// Artifact - a packaged product: the compressed archive and its checksum sidecar
type Artifact struct {
	Path         string         `json:"path"`
	ChecksumPath string         `json:"checksum_path"`
	Checksum     ChecksumRecord `json:"checksum"`
}

// ProcessingDirectory - the per-scene directory tree used while a product is built
type ProcessingDirectory struct {
	Scene  string `json:"scene"`
	Stage  string `json:"stage"`
	Work   string `json:"work"`
	Output string `json:"output"`
}
