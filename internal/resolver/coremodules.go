package resolver

// CoreModules is the fixed list of Node.js core module names that
// "--external-core" adds to InputOptions.External (spec.md §6, resolved
// against original_source/src/main.rs's CORE_MODULES constant since the
// distilled spec doesn't enumerate them).
var CoreModules = []string{
	"assert",
	"buffer",
	"child_process",
	"cluster",
	"crypto",
	"dgram",
	"dns",
	"domain",
	"events",
	"fs",
	"http",
	"https",
	"net",
	"os",
	"path",
	"punycode",
	"querystring",
	"readline",
	"stream",
	"string_decoder",
	"tls",
	"tty",
	"url",
	"util",
	"v8",
	"vm",
	"zlib",
}
