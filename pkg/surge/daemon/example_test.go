package daemon_test

import (
	"github.com/yourusername/surge/pkg/surge/daemon"
	"github.com/yourusername/surge/pkg/surge/http11"
)

// Example shows the minimal daemon lifecycle: bind, serve, stop.
func Example() {
	config := daemon.DefaultConfig()
	config.Port = 8888

	d := daemon.New(config)
	if err := d.Bind(); err != nil {
		panic(err)
	}

	err := d.Start(func(req *http11.RequestInfo, io *http11.IO) {
		switch req.Path {
		case "/":
			io.SendText(200, "Hello!", "")
		case "/download":
			io.SendFilePath(200, "/srv/files/archive.bin", "application/octet-stream")
		default:
			io.SendError(404, "")
		}
	})
	if err != nil {
		panic(err)
	}

	defer d.Stop()
}
