// ABOUTME: Product and version constants
// ABOUTME: Reported by the CLI and advertised by the stream server
package version

// Version is the release version
const Version = "0.3.0"

// Product is the product name
const Product = "audioserver"

// Manufacturer is the vendor name
const Manufacturer = "Resonate Protocol"

// String formats the product and version for banners and logs
func String() string {
	return Product + " " + Version
}
