package version

// PackageName is the name of the package, set at build time.
var PackageName = "vllmd"

// Version is the version of the package, set at build time.
var Version = "undefined"

// CommitHash is the git hash the package was built from, set at build time.
var CommitHash = "undefined"

// BuildDate is the date the package was built, set at build time.
var BuildDate = "undefined"
