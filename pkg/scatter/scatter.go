// Package scatter exposes a Scatter-style wallet API (identity, login
// signatures, transaction signing) on top of a bridge.
package scatter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/meetone/meet-bridge/pkg/bridge"
)

const logPrefix = "scatter:scatter"

var (
	// ErrNoIdentity is returned by Authenticate before an identity is known.
	ErrNoIdentity = errors.New("scatter: no identity")
	// ErrLegacyHost is returned when the host does not post responses.
	ErrLegacyHost = errors.New("scatter: host does not post responses")
)

// Caller issues bridge requests; *bridge.Bridge implements it.
type Caller interface {
	Call(ctx context.Context, route string, params any) (*bridge.Result, error)
}

// Account is one chain account of an identity.
type Account struct {
	Name       string `json:"name"`
	Authority  string `json:"authority"`
	Blockchain string `json:"blockchain"`
}

// Identity is the wallet's current user.
type Identity struct {
	Accounts  []Account `json:"accounts"`
	PublicKey string    `json:"publicKey"`
}

// Network describes the chain endpoint a page wants to use.
type Network struct {
	Protocol   string `json:"protocol"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	ChainID    string `json:"chainId"`
	Blockchain string `json:"blockchain"`
}

// FullHost returns protocol://host:port.
func (n Network) FullHost() string {
	return n.Protocol + "://" + n.Host + ":" + strconv.Itoa(n.Port)
}

// Options configures a Scatter.
type Options struct {
	// PageHost is the host name of the page requesting signatures.
	PageHost string
}

// Scatter holds the shim's identity and network state.
type Scatter struct {
	caller   Caller
	pageHost string

	mu              sync.Mutex
	identity        *Identity
	network         Network
	requiredVersion string
}

// New creates a Scatter backed by caller.
func New(caller Caller, opts Options) *Scatter {
	return &Scatter{caller: caller, pageHost: opts.PageHost}
}

type accountInfo struct {
	Account   string `json:"account"`
	PublicKey string `json:"publicKey"`
}

type signatureData struct {
	Signature string `json:"signature"`
}

// GetIdentity asks the host for the current account and remembers it. A
// non-zero result yields an empty identity and leaves the stored one alone.
func (s *Scatter) GetIdentity(ctx context.Context) (*Identity, error) {
	resp, err := s.await(ctx, bridge.RouteAccountInfo, map[string]any{})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return &Identity{}, nil
	}

	var info accountInfo
	if err := resp.DecodeData(&info); err != nil {
		return nil, fmt.Errorf("%s - account info: %w", logPrefix, err)
	}
	identity := &Identity{
		Accounts: []Account{{
			Name:       info.Account,
			Authority:  "active",
			Blockchain: "eos",
		}},
		PublicKey: info.PublicKey,
	}

	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
	return identity, nil
}

// Identity returns the stored identity, or nil.
func (s *Scatter) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Authenticate signs the page host with the identity's key. A non-zero
// result yields an empty signature.
func (s *Scatter) Authenticate(ctx context.Context) (string, error) {
	if s.Identity() == nil {
		return "", ErrNoIdentity
	}
	resp, err := s.await(ctx, bridge.RouteSignature, bridge.SignatureParams{Data: s.StrippedHost()})
	if err != nil {
		return "", err
	}
	return signatureOrEmpty(resp)
}

// GetArbitrarySignature signs data. The host picks the key, so the public key
// argument is not sent. A non-zero result is a *bridge.HostError.
func (s *Scatter) GetArbitrarySignature(ctx context.Context, _ string, data, whatfor string, isHash bool) (string, error) {
	resp, err := s.await(ctx, bridge.RouteSignature, bridge.SignatureParams{
		Data:        data,
		WhatFor:     whatfor,
		IsHash:      isHash,
		IsArbitrary: true,
	})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &bridge.HostError{Response: resp}
	}
	var sig signatureData
	if err := resp.DecodeData(&sig); err != nil {
		return "", fmt.Errorf("%s - signature: %w", logPrefix, err)
	}
	return sig.Signature, nil
}

// SignProvider asks the host to sign a serialized transaction. A non-zero
// result yields an empty signature.
func (s *Scatter) SignProvider(ctx context.Context, buf []byte, transaction any) (string, error) {
	resp, err := s.await(ctx, bridge.RouteSignProvider, bridge.SignProviderParams{
		Buf:         bridge.BytesToBuf(buf),
		Transaction: transaction,
	})
	if err != nil {
		return "", err
	}
	return signatureOrEmpty(resp)
}

// ForgetIdentity drops the stored identity.
func (s *Scatter) ForgetIdentity() {
	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()
}

// UseIdentity replaces the stored identity; nil forgets it.
func (s *Scatter) UseIdentity(identity *Identity) {
	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
}

// PublicKey returns the stored identity's public key, or "".
func (s *Scatter) PublicKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.PublicKey
}

// SuggestNetwork always accepts; the host manages its own networks.
func (s *Scatter) SuggestNetwork(Network) bool {
	return true
}

// RequireVersion records the version a page asked for.
func (s *Scatter) RequireVersion(version string) {
	s.mu.Lock()
	s.requiredVersion = version
	s.mu.Unlock()
}

// RequiredVersion returns the version recorded by RequireVersion.
func (s *Scatter) RequiredVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requiredVersion
}

// StrippedHost returns the page host without a leading "www.".
func (s *Scatter) StrippedHost() string {
	return strings.TrimPrefix(s.pageHost, "www.")
}

// SetNetwork stores network, defaulting its protocol to fallbackProtocol
// and then "http", and returns the stored value.
func (s *Scatter) SetNetwork(network Network, fallbackProtocol string) Network {
	if network.Protocol == "" {
		network.Protocol = fallbackProtocol
	}
	if network.Protocol == "" {
		network.Protocol = "http"
	}
	s.mu.Lock()
	s.network = network
	s.mu.Unlock()
	return network
}

// Network returns the stored network.
func (s *Scatter) Network() Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.network
}

func (s *Scatter) await(ctx context.Context, route string, params any) (*bridge.Response, error) {
	res, err := s.caller.Call(ctx, route, params)
	if err != nil {
		return nil, fmt.Errorf("%s - %s: %w", logPrefix, route, err)
	}
	if res.Kind() != bridge.ResultDeferred {
		slog.Warn(fmt.Sprintf("%s - %s sent to a legacy host, no response will arrive", logPrefix, route))
		return nil, fmt.Errorf("%s - %s: %w", logPrefix, route, ErrLegacyHost)
	}
	resp, err := res.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s - %s: %w", logPrefix, route, err)
	}
	return resp, nil
}

func signatureOrEmpty(resp *bridge.Response) (string, error) {
	if !resp.OK() {
		return "", nil
	}
	var sig signatureData
	if err := resp.DecodeData(&sig); err != nil {
		return "", fmt.Errorf("%s - signature: %w", logPrefix, err)
	}
	return sig.Signature, nil
}
