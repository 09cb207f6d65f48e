package bridge

import "context"

// Routes understood by the wallet host.
const (
	RouteTransfer       = "eos/transfer"
	RouteTransaction    = "eos/transaction"
	RouteAccountInfo    = "eos/account_info"
	RouteSignature      = "eos/signature"
	RouteGetBalance     = "eos/getBalance"
	RouteNavigate       = "app/navigate"
	RouteWebview        = "app/webview"
	RouteSignProvider   = "eos/sign_provider"
	RouteShare          = "app/share"
	RouteNetwork        = "eos/network"
	RouteAuthorizeInWeb = "eos/authorizeInWeb"
)

var routeCatalog = []string{
	RouteTransfer,
	RouteTransaction,
	RouteAccountInfo,
	RouteSignature,
	RouteGetBalance,
	RouteNavigate,
	RouteWebview,
	RouteSignProvider,
	RouteShare,
	RouteNetwork,
	RouteAuthorizeInWeb,
}

// Routes returns the route catalog.
func Routes() []string {
	out := make([]string, len(routeCatalog))
	copy(out, routeCatalog)
	return out
}

// IsKnownRoute reports whether route is in the catalog.
func IsKnownRoute(route string) bool {
	for _, r := range routeCatalog {
		if r == route {
			return true
		}
	}
	return false
}

// TransferParams asks the host to show a transfer confirmation.
type TransferParams struct {
	To             string  `json:"to"`
	Amount         float64 `json:"amount"`
	TokenName      string  `json:"tokenName"`
	TokenContract  string  `json:"tokenContract"`
	TokenPrecision int     `json:"tokenPrecision"`
	// Memo is passed to the contract.
	Memo string `json:"memo,omitempty"`
	// OrderInfo is shown to the user only.
	OrderInfo string `json:"orderInfo,omitempty"`
}

// Authorization is an EOS permission level.
type Authorization struct {
	Actor      string `json:"actor"`
	Permission string `json:"permission"`
}

// Action is one EOS contract action.
type Action struct {
	Account       string          `json:"account"`
	Name          string          `json:"name"`
	Authorization []Authorization `json:"authorization"`
	Data          any             `json:"data"`
}

// TransactionParams asks the host to sign and push a transaction.
type TransactionParams struct {
	Actions     []Action `json:"actions"`
	Description string   `json:"description,omitempty"`
}

// SignatureParams asks the host to sign arbitrary data.
type SignatureParams struct {
	Data        string `json:"data"`
	WhatFor     string `json:"whatfor,omitempty"`
	IsHash      bool   `json:"isHash,omitempty"`
	IsArbitrary bool   `json:"isArbitrary,omitempty"`
}

// GetBalanceParams queries a token balance.
type GetBalanceParams struct {
	AccountName string `json:"accountName,omitempty"`
	Contract    string `json:"contract"`
	Symbol      string `json:"symbol"`
}

// NavigateParams opens a native page.
type NavigateParams struct {
	Target  string         `json:"target"`
	Options map[string]any `json:"options,omitempty"`
}

// WebviewParams opens a URL in a new host webview.
type WebviewParams struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// SignProviderParams carries a serialized transaction for signing.
// Buf is a list of byte values, not base64, to match the host.
type SignProviderParams struct {
	Buf         []int `json:"buf"`
	Transaction any   `json:"transaction"`
}

// ShareParams opens the host share sheet.
type ShareParams struct {
	Type        string `json:"type,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	ImageURL    string `json:"imgUrl,omitempty"`
}

// AuthorizeInWebParams asks the host to authorize the current page.
type AuthorizeInWebParams struct {
	ResponseURL string `json:"responseUrl,omitempty"`
	Description string `json:"description,omitempty"`
}

// BytesToBuf converts raw bytes to the list form SignProviderParams.Buf uses.
func BytesToBuf(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

// Transfer requests eos/transfer.
func (b *Bridge) Transfer(ctx context.Context, params TransferParams) (*Result, error) {
	return b.Call(ctx, RouteTransfer, params)
}

// Transaction requests eos/transaction.
func (b *Bridge) Transaction(ctx context.Context, params TransactionParams) (*Result, error) {
	return b.Call(ctx, RouteTransaction, params)
}

// AccountInfo requests eos/account_info.
func (b *Bridge) AccountInfo(ctx context.Context) (*Result, error) {
	return b.Call(ctx, RouteAccountInfo, map[string]any{})
}

// Signature requests eos/signature.
func (b *Bridge) Signature(ctx context.Context, params SignatureParams) (*Result, error) {
	return b.Call(ctx, RouteSignature, params)
}

// GetBalance requests eos/getBalance.
func (b *Bridge) GetBalance(ctx context.Context, params GetBalanceParams) (*Result, error) {
	return b.Call(ctx, RouteGetBalance, params)
}

// Navigate requests app/navigate.
func (b *Bridge) Navigate(ctx context.Context, params NavigateParams) (*Result, error) {
	return b.Call(ctx, RouteNavigate, params)
}

// Webview requests app/webview.
func (b *Bridge) Webview(ctx context.Context, params WebviewParams) (*Result, error) {
	return b.Call(ctx, RouteWebview, params)
}

// SignProvider requests eos/sign_provider.
func (b *Bridge) SignProvider(ctx context.Context, params SignProviderParams) (*Result, error) {
	return b.Call(ctx, RouteSignProvider, params)
}

// Share requests app/share.
func (b *Bridge) Share(ctx context.Context, params ShareParams) (*Result, error) {
	return b.Call(ctx, RouteShare, params)
}

// Network requests eos/network.
func (b *Bridge) Network(ctx context.Context) (*Result, error) {
	return b.Call(ctx, RouteNetwork, map[string]any{})
}

// AuthorizeInWeb requests eos/authorizeInWeb.
func (b *Bridge) AuthorizeInWeb(ctx context.Context, params AuthorizeInWebParams) (*Result, error) {
	return b.Call(ctx, RouteAuthorizeInWeb, params)
}
