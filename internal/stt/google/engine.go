// Package google provides a Google Cloud Speech-to-Text engine.
package google

import (
	"context"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stebratori/jobBolt-backend/internal/stt"
)

// Engine implements stt.Engine using Google Cloud Speech-to-Text.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type Engine struct {
	cfg    stt.Config
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
}

// New creates a new Google STT engine.
func New(ctx context.Context, cfg stt.Config) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, client: c}, nil
}

// Start opens a streaming recognition session and sends the initial
// config. The session is ready as soon as the config message is
// accepted; there is no explicit open event in this protocol.
func (e *Engine) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := e.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}
	e.stream = stream
	e.cb = cb

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(e.cfg.SampleRateHz),
					LanguageCode:    e.cfg.LanguageCode,
				},
				InterimResults: true,
			},
		},
	})
	if err != nil {
		return err
	}

	cb.OnOpen("")
	go e.listen()
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (e *Engine) SendAudio(ctx context.Context, audio []byte) error {
	return e.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close ends the streaming session.
func (e *Engine) Close() error {
	if e.stream != nil {
		return e.stream.CloseSend()
	}
	return nil
}

// listen receives transcript responses and invokes callbacks.
func (e *Engine) listen() {
	for {
		resp, err := e.stream.Recv()
		if err != nil {
			if st, ok := status.FromError(err); ok {
				switch st.Code() {
				case codes.OK, codes.Canceled:
					e.cb.OnClose(int(st.Code()), st.Message())
				default:
					e.cb.OnError(err)
				}
			} else {
				e.cb.OnError(err)
			}
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			e.cb.OnTranscript(alt.Transcript, r.IsFinal)
		}
	}
}
