package capture

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mjpegHandler 把给定帧作为 multipart/x-mixed-replace 流返回
func mjpegHandler(t *testing.T, frames [][]byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		w.WriteHeader(http.StatusOK)

		for _, frame := range frames {
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type": {"image/jpeg"},
			})
			require.NoError(t, err)
			_, err = part.Write(frame)
			require.NoError(t, err)
		}
		mw.Close()
	}
}

func TestMJPEGSource_ReadsFramesInOrder(t *testing.T) {
	frames := [][]byte{[]byte("frame-one"), []byte("frame-two"), []byte("frame-three")}
	server := httptest.NewServer(mjpegHandler(t, frames))
	defer server.Close()

	source := NewMJPEGSource(server.URL)
	ctx := context.Background()
	require.NoError(t, source.Open(ctx))
	defer source.Close()

	for _, want := range frames {
		got, err := source.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// 流结束
	_, err := source.Read(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestMJPEGSource_OpenRejectsNonMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	source := NewMJPEGSource(server.URL)
	err := source.Open(context.Background())
	assert.Error(t, err)
}

func TestMJPEGSource_OpenRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	source := NewMJPEGSource(server.URL)
	err := source.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestMJPEGSource_ReadBeforeOpenFails(t *testing.T) {
	source := NewMJPEGSource("http://example.invalid/stream")
	_, err := source.Read(context.Background())
	assert.Error(t, err)
}

func TestMJPEGSource_CloseIsIdempotent(t *testing.T) {
	server := httptest.NewServer(mjpegHandler(t, [][]byte{[]byte("frame")}))
	defer server.Close()

	source := NewMJPEGSource(server.URL)
	require.NoError(t, source.Open(context.Background()))

	assert.NoError(t, source.Close())
	assert.NoError(t, source.Close())
}

func TestNewSource_SchemeDispatch(t *testing.T) {
	source, err := NewSource("http://camera.local/stream")
	require.NoError(t, err)
	assert.IsType(t, &MJPEGSource{}, source)

	source, err = NewSource("https://camera.local/stream")
	require.NoError(t, err)
	assert.IsType(t, &MJPEGSource{}, source)

	_, err = NewSource("rtsp://camera.local/stream")
	assert.Error(t, err)
}
