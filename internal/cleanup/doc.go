// Package cleanup removes downloaded installers once a run is over.
package cleanup
