package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/shopflow/core/model"
	coremqtt "github.com/kilianp07/shopflow/core/mqtt"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func withMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	prev := newMQTTClient
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = prev })
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.Equal(t, "id", opts.ClientID)

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", AuthMethod: "certificate", Username: "u"})
	require.NoError(t, err)
	assert.Empty(t, opts.Username)
	assert.Contains(t, opts.ClientID, "shopflow-")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.Error(t, Config{Enabled: true}.Validate())
	assert.Error(t, Config{Enabled: true, Broker: "tcp://b:1883", QoS: 3}.Validate())
	assert.Error(t, Config{Enabled: true, Broker: "tcp://b:1883", AuthMethod: "token"}.Validate())
	assert.NoError(t, Config{Enabled: true, Broker: "tcp://b:1883", QoS: 1}.Validate())
}

func TestNeedsTopic(t *testing.T) {
	assert.Equal(t, "shopflow/jobs/j1/material-needs", Config{}.NeedsTopic("j1"))
	assert.Equal(t, "plant/a/jobs/j2/material-needs", Config{TopicPrefix: "plant/a/"}.NeedsTopic("j2"))
}

func TestPublishNeeds(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: 1, TopicPrefix: "plant"})
	require.NoError(t, err)

	needs := []model.MaterialNeed{{OperationID: "op2", Name: "op2", EarliestTime: 6, EarliestPercentage: 100, LatestPercentage: 100}}
	id, err := pub.PublishNeeds(coremqtt.NeedsAnnouncement{JobID: "j1", SimTime: 5, Needs: needs})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, mc.published, 1)
	msg := mc.published[0]
	assert.Equal(t, "plant/jobs/j1/material-needs", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var decoded coremqtt.NeedsAnnouncement
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, id, decoded.MessageID)
	assert.Equal(t, needs, decoded.Needs)
	assert.NotZero(t, decoded.Timestamp)
}

func TestPublishRetries(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail"), nil}}
	withMockClient(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	_, err = pub.PublishNeeds(coremqtt.NeedsAnnouncement{JobID: "j1"})
	require.NoError(t, err)
	assert.Len(t, mc.published, 2)

	mc.publishErrs = []error{errors.New("a"), errors.New("b")}
	_, err = pub.PublishNeeds(coremqtt.NeedsAnnouncement{JobID: "j1"})
	assert.EqualError(t, err, "b")
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1})
	require.NoError(t, err)
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lwt", mc.opts.WillTopic)
	assert.Equal(t, "bye", string(mc.opts.WillPayload))

	pub.Disconnect()
	assert.Empty(t, mc.published)
	_, err = pub.PublishNeeds(coremqtt.NeedsAnnouncement{JobID: "j1"})
	assert.ErrorIs(t, err, coremqtt.ErrNotConnected)
}

func TestConnectError(t *testing.T) {
	mc := &mockClient{connectErr: errors.New("refused")}
	withMockClient(t, mc)
	_, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883"})
	assert.EqualError(t, err, "refused")
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	m.FailJobs["bad"] = true
	id, err := m.PublishNeeds(coremqtt.NeedsAnnouncement{JobID: "j1"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	_, err = m.PublishNeeds(coremqtt.NeedsAnnouncement{JobID: "bad"})
	assert.Error(t, err)
	assert.Len(t, m.Published(), 1)
}

type publishedMsg struct {
	topic   string
	qos     byte
	payload []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts        *paho.ClientOptions
	published   []publishedMsg
	publishErrs []error
	connectErr  error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, publishedMsg{topic, qos, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }
