package walker

// globalIgnorePatterns are always excluded, independent of any .gitignore or
// .wbgrepignore file.
var globalIgnorePatterns = []string{
	"*.lock", "*.bin", "*.ipynb", "*.pyc", "*.safetensors", "*.sqlite",
	"*.pt", "*.whl", "*.egg", "*.so", "*.dll", "*.dylib", "*.exe", "*.o",
	"*.a", "*.class", "*.jar", "*.war", "*.min.js", "*.min.css", "*.map",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
}

// codeExtensions is the allowlist of file extensions (and bare filenames)
// the walker considers indexable.
var codeExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".py": true, ".java": true, ".go": true, ".rs": true, ".c": true, ".cpp": true,
	".h": true, ".hpp": true, ".cs": true, ".rb": true, ".php": true, ".swift": true,
	".kt": true, ".scala": true, ".r": true, ".m": true, ".md": true, ".mdx": true,
	".txt": true, ".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".xml": true, ".html": true, ".css": true, ".scss": true, ".sass": true,
	".less": true, ".vue": true, ".svelte": true, ".sql": true, ".sh": true,
	".bash": true, ".zsh": true, ".fish": true, ".ps1": true, ".bat": true,
	".cmd": true, ".dockerfile": true, ".makefile": true, ".cmake": true,
	".gradle": true, ".tf": true, ".hcl": true, ".proto": true, ".graphql": true,
	".prisma": true,
}

// specialFilenames are bare filenames (no extension) that are still
// indexable, matched case-insensitively against the base name.
var specialFilenames = map[string]bool{
	"dockerfile":      true,
	"makefile":        true,
	"cmakelists.txt":  true,
	"gemfile":         true,
	"rakefile":        true,
}
