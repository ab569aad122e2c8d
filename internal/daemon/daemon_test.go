package daemon

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/zbridge/internal/capture"
	"firestige.xyz/zbridge/internal/codec"
	"firestige.xyz/zbridge/internal/core"
	"firestige.xyz/zbridge/internal/log"
	"firestige.xyz/zbridge/internal/serial"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "zbridge.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func frame(t *testing.T, typ core.MessageType, payload []byte) []byte {
	t.Helper()
	out := make([]byte, codec.EncodedLen(len(payload)))
	n, err := codec.Encode(typ, payload, out)
	require.NoError(t, err)
	return out[:n]
}

func TestDaemon_RunUntilEndOfStream(t *testing.T) {
	t.Cleanup(func() { log.SetLogger(nil) })
	tmpDir := t.TempDir()
	pcapPath := filepath.Join(tmpDir, "rx.pcap")
	configPath := writeConfig(t, tmpDir, `
keys:
  - "not a key"
  - "5a:69:67:42:65:65:41:6c:6c:69:61:6e:63:65:30:39"
log:
  level: warn
capture:
  pcap_file: `+pcapPath+`
`)

	var stream bytes.Buffer
	stream.Write(frame(t, core.RadioReceive, []byte{0x41, 0x88, 0x01, 0x34, 0x12, 0x78, 0x56, 0xBC, 0x9A, 0xFF}))
	stream.Write(frame(t, core.EnergyDetect, []byte{20, 3}))

	var openedWith serial.Options
	var out bytes.Buffer
	d, err := New(configPath, "/dev/ttyACM0", Options{
		Out: &out,
		Open: func(name string, opts serial.Options) (io.ReadCloser, error) {
			openedWith = opts
			return io.NopCloser(&stream), nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, d.Start())
	assert.Equal(t, 115200, openedWith.BaudRate)

	require.NoError(t, d.Run())

	assert.Contains(t, out.String(), "Read packets over /dev/ttyACM0\n")
	assert.Contains(t, out.String(), "## Packet 9 LQI 255\n")
	assert.Contains(t, out.String(), "## Energy on channel 20: 3\n")

	_, ok := d.Keys().Lookup("User 1")
	assert.True(t, ok, "labels follow the position in the list")
	_, ok = d.Keys().Lookup("User 0")
	assert.False(t, ok)

	r, err := capture.Open(pcapPath)
	require.NoError(t, err)
	defer r.Close()
	pkt, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x88, 0x01, 0x34, 0x12, 0x78, 0x56, 0xBC, 0x9A}, pkt.Data)
	_, err = r.ReadPacket()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDaemon_OpenFailure(t *testing.T) {
	t.Cleanup(func() { log.SetLogger(nil) })
	d, err := New("", "/dev/missing", Options{
		Out: io.Discard,
		Open: func(string, serial.Options) (io.ReadCloser, error) {
			return nil, errors.New("no such file or directory")
		},
	})
	require.NoError(t, err)

	err = d.Start()
	var oe *OpenError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "/dev/missing", oe.Port)
	assert.Equal(t, `Failed to open "/dev/missing". Error: no such file or directory`, err.Error())
}

func TestDaemon_MissingConfig(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.yml"), "/dev/null", Options{})
	assert.Error(t, err)
}

func TestDaemon_Reload(t *testing.T) {
	t.Cleanup(func() { log.SetLogger(nil) })
	tmpDir := t.TempDir()
	configPath := writeConfig(t, tmpDir, "keys: []\nlog:\n  level: error\n")

	d, err := New(configPath, "fake", Options{
		Out:  io.Discard,
		Open: func(string, serial.Options) (io.ReadCloser, error) { return io.NopCloser(&bytes.Buffer{}), nil },
	})
	require.NoError(t, err)
	require.NoError(t, d.Start())
	defer d.Stop()
	assert.Zero(t, d.Keys().Len())

	writeConfig(t, tmpDir, "keys:\n  - \"000102030405060708090a0b0c0d0e0f\"\nlog:\n  level: debug\n")
	require.NoError(t, d.Reload())

	assert.Equal(t, 1, d.Keys().Len())
	assert.Equal(t, "debug", d.Config().Log.Level)
	assert.True(t, log.GetLogger().IsDebugEnabled())
}

func TestDaemon_ReloadWhileRunning(t *testing.T) {
	t.Cleanup(func() { log.SetLogger(nil) })
	tmpDir := t.TempDir()
	configPath := writeConfig(t, tmpDir, "log:\n  level: error\n")

	pr, pw := io.Pipe()
	d, err := New(configPath, "fake", Options{
		Out:  io.Discard,
		Open: func(string, serial.Options) (io.ReadCloser, error) { return pr, nil },
	})
	require.NoError(t, err)
	require.NoError(t, d.Start())

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Reload())
		_, err := pw.Write(frame(t, core.EnergyDetect, []byte{11, byte(i)}))
		require.NoError(t, err)
	}
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)
}

func TestDaemon_MetricsServer(t *testing.T) {
	t.Cleanup(func() { log.SetLogger(nil) })
	configPath := writeConfig(t, t.TempDir(), "metrics:\n  enabled: true\n  listen: 127.0.0.1:0\nlog:\n  level: error\n")

	d, err := New(configPath, "fake", Options{
		Out:  io.Discard,
		Open: func(string, serial.Options) (io.ReadCloser, error) { return io.NopCloser(&bytes.Buffer{}), nil },
	})
	require.NoError(t, err)
	require.NoError(t, d.Start())
	assert.NotEmpty(t, d.MetricsAddr())
	d.Stop()
	assert.Empty(t, d.MetricsAddr())
}
