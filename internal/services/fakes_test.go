package services

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/velora-shop/api/internal/domain"
	"github.com/velora-shop/api/internal/payments"
	"github.com/velora-shop/api/internal/repositories"
)

func notFound(op string) error {
	return repositories.NewError(op, repositories.ErrorNotFound, "row not found", nil)
}

func conflict(op string) error {
	return repositories.NewError(op, repositories.ErrorConflict, "precondition failed", nil)
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	variants map[string]domain.ProductVariant
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		products: map[int64]domain.Product{},
		variants: map[string]domain.ProductVariant{},
	}
}

func (f *fakeProductRepo) addProduct(p domain.Product) { f.products[p.ID] = p }

func (f *fakeProductRepo) addVariant(v domain.ProductVariant) {
	selector := domain.NewVariantSelector(v.ColorID, v.SizeID)
	f.variants[domain.CartKey(v.ProductID, selector)] = v
}

func (f *fakeProductRepo) FindByID(_ context.Context, productID int64) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return domain.Product{}, notFound("products.FindByID")
	}
	return p, nil
}

func (f *fakeProductRepo) ListActive(_ context.Context, afterID int64, limit int) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Product
	for _, p := range f.products {
		if p.IsActive && p.ID > afterID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeProductRepo) FindVariant(_ context.Context, productID int64, selector domain.VariantSelector) (domain.ProductVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.variants[domain.CartKey(productID, selector)]
	if !ok {
		return domain.ProductVariant{}, notFound("products.FindVariant")
	}
	return v, nil
}

func (f *fakeProductRepo) DecrementProductStock(_ context.Context, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok || p.Stock < quantity {
		return conflict("products.DecrementProductStock")
	}
	p.Stock -= quantity
	f.products[productID] = p
	return nil
}

func (f *fakeProductRepo) DecrementVariantStock(_ context.Context, variantID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, v := range f.variants {
		if v.ID == variantID {
			if v.Stock < quantity {
				return conflict("products.DecrementVariantStock")
			}
			v.Stock -= quantity
			f.variants[key] = v
			return nil
		}
	}
	return conflict("products.DecrementVariantStock")
}

func (f *fakeProductRepo) IncrementProductStock(_ context.Context, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return notFound("products.IncrementProductStock")
	}
	p.Stock += quantity
	f.products[productID] = p
	return nil
}

func (f *fakeProductRepo) IncrementVariantStock(_ context.Context, variantID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, v := range f.variants {
		if v.ID == variantID {
			v.Stock += quantity
			f.variants[key] = v
			return nil
		}
	}
	return notFound("products.IncrementVariantStock")
}

func (f *fakeProductRepo) ProductStock(_ context.Context, productID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return 0, notFound("products.ProductStock")
	}
	return p.Stock, nil
}

func (f *fakeProductRepo) VariantStock(_ context.Context, variantID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.variants {
		if v.ID == variantID {
			return v.Stock, nil
		}
	}
	return 0, notFound("products.VariantStock")
}

type fakeCampaignRepo struct {
	campaigns map[int64][]domain.Campaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: map[int64][]domain.Campaign{}}
}

func (f *fakeCampaignRepo) cover(productID int64, c domain.Campaign) {
	f.campaigns[productID] = append(f.campaigns[productID], c)
}

func (f *fakeCampaignRepo) BestActiveForProduct(_ context.Context, productID int64, now time.Time) (domain.Campaign, error) {
	candidates := make([]domain.Campaign, 0)
	for _, c := range f.campaigns[productID] {
		if c.ActiveAt(now) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return domain.Campaign{}, notFound("campaigns.BestActiveForProduct")
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], nil
}

type fakeDiscountCodeRepo struct {
	codes  map[string]domain.DiscountCode
	usages []domain.DiscountCodeUsage
}

func newFakeDiscountCodeRepo() *fakeDiscountCodeRepo {
	return &fakeDiscountCodeRepo{codes: map[string]domain.DiscountCode{}}
}

func (f *fakeDiscountCodeRepo) FindByCode(_ context.Context, code string) (domain.DiscountCode, error) {
	dc, ok := f.codes[code]
	if !ok {
		return domain.DiscountCode{}, notFound("discount_codes.FindByCode")
	}
	return dc, nil
}

func (f *fakeDiscountCodeRepo) CountUsages(_ context.Context, discountCodeID int64) (int, error) {
	count := 0
	for _, u := range f.usages {
		if u.DiscountCodeID == discountCodeID {
			count++
		}
	}
	return count, nil
}

func (f *fakeDiscountCodeRepo) HasUserUsage(_ context.Context, discountCodeID int64, userID int64) (bool, error) {
	for _, u := range f.usages {
		if u.DiscountCodeID == discountCodeID && u.UserID != nil && *u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDiscountCodeRepo) RecordUsage(_ context.Context, usage domain.DiscountCodeUsage) error {
	f.usages = append(f.usages, usage)
	return nil
}

type fakeDeliveryRepo struct {
	methods map[int64]domain.DeliveryMethod
}

func newFakeDeliveryRepo(methods ...domain.DeliveryMethod) *fakeDeliveryRepo {
	repo := &fakeDeliveryRepo{methods: map[int64]domain.DeliveryMethod{}}
	for _, m := range methods {
		repo.methods[m.ID] = m
	}
	return repo
}

func (f *fakeDeliveryRepo) FindByID(_ context.Context, id int64) (domain.DeliveryMethod, error) {
	m, ok := f.methods[id]
	if !ok {
		return domain.DeliveryMethod{}, notFound("delivery_methods.FindByID")
	}
	return m, nil
}

func (f *fakeDeliveryRepo) FirstActive(_ context.Context) (domain.DeliveryMethod, error) {
	active := make([]domain.DeliveryMethod, 0)
	for _, m := range f.methods {
		if m.IsActive {
			active = append(active, m)
		}
	}
	if len(active) == 0 {
		return domain.DeliveryMethod{}, notFound("delivery_methods.FirstActive")
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].SortOrder != active[j].SortOrder {
			return active[i].SortOrder < active[j].SortOrder
		}
		return active[i].ID < active[j].ID
	})
	return active[0], nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]domain.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 1, orders: map[int64]domain.Order{}}
}

func (f *fakeOrderRepo) Insert(_ context.Context, order domain.Order) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order.ID = f.nextID
	f.nextID++
	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
		order.Items[i].OrderID = order.ID
	}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrderRepo) FindByID(_ context.Context, orderID int64) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("orders.FindByID")
	}
	return o, nil
}

func (f *fakeOrderRepo) MarkCancelled(_ context.Context, orderID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, notFound("orders.MarkCancelled")
	}
	if !o.Status.IsCancellable() {
		return false, nil
	}
	o.Status = domain.OrderStatusCancelled
	f.orders[orderID] = o
	return true, nil
}

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	nextID   int64
	invoices map[int64]domain.Invoice
	locked   int
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{nextID: 1, invoices: map[int64]domain.Invoice{}}
}

func (f *fakeInvoiceRepo) Insert(_ context.Context, invoice domain.Invoice) (domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invoice.ID = f.nextID
	f.nextID++
	f.invoices[invoice.ID] = invoice
	return invoice, nil
}

func (f *fakeInvoiceRepo) FindByID(_ context.Context, invoiceID int64) (domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return domain.Invoice{}, notFound("invoices.FindByID")
	}
	return inv, nil
}

func (f *fakeInvoiceRepo) FindByIDForUpdate(ctx context.Context, invoiceID int64) (domain.Invoice, error) {
	f.mu.Lock()
	f.locked++
	f.mu.Unlock()
	return f.FindByID(ctx, invoiceID)
}

func (f *fakeInvoiceRepo) MarkPaid(_ context.Context, invoiceID int64, orderID int64, paidAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return notFound("invoices.MarkPaid")
	}
	inv.OrderID = &orderID
	inv.Status = domain.InvoiceStatusPaid
	inv.PaidAt = &paidAt
	f.invoices[invoiceID] = inv
	return nil
}

func (f *fakeInvoiceRepo) MarkCancelled(_ context.Context, invoiceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return notFound("invoices.MarkCancelled")
	}
	inv.Status = domain.InvoiceStatusCancelled
	f.invoices[invoiceID] = inv
	return nil
}

type fakeTransactionRepo struct {
	mu     sync.Mutex
	nextID int64
	txns   map[int64]domain.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{nextID: 1, txns: map[int64]domain.Transaction{}}
}

func (f *fakeTransactionRepo) Insert(_ context.Context, txn domain.Transaction) (domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn.ID = f.nextID
	f.nextID++
	f.txns[txn.ID] = txn
	return txn, nil
}

func (f *fakeTransactionRepo) FindByID(_ context.Context, id int64) (domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[id]
	if !ok {
		return domain.Transaction{}, notFound("transactions.FindByID")
	}
	return txn, nil
}

func (f *fakeTransactionRepo) FindByGatewayTransactionID(_ context.Context, gatewayTxnID string) (domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, txn := range f.txns {
		if txn.GatewayTransactionID == gatewayTxnID {
			return txn, nil
		}
	}
	return domain.Transaction{}, notFound("transactions.FindByGatewayTransactionID")
}

func (f *fakeTransactionRepo) SetGatewayTransactionID(_ context.Context, id int64, gatewayTxnID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[id]
	if !ok {
		return notFound("transactions.SetGatewayTransactionID")
	}
	txn.GatewayTransactionID = gatewayTxnID
	f.txns[id] = txn
	return nil
}

func (f *fakeTransactionRepo) MarkVerified(_ context.Context, id int64, reference string, verifiedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[id]
	if !ok {
		return notFound("transactions.MarkVerified")
	}
	txn.Status = domain.TransactionStatusVerified
	txn.Reference = reference
	txn.VerifiedAt = &verifiedAt
	f.txns[id] = txn
	return nil
}

func (f *fakeTransactionRepo) MarkRejected(_ context.Context, id int64, callbackData map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[id]
	if !ok {
		return notFound("transactions.MarkRejected")
	}
	txn.Status = domain.TransactionStatusRejected
	txn.CallbackData = callbackData
	f.txns[id] = txn
	return nil
}

func (f *fakeTransactionRepo) MarkFailed(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.txns[id]
	if !ok {
		return notFound("transactions.MarkFailed")
	}
	txn.Status = domain.TransactionStatusFailed
	f.txns[id] = txn
	return nil
}

type fakeCampaignSaleRepo struct {
	sales []domain.CampaignSale
}

func (f *fakeCampaignSaleRepo) Insert(_ context.Context, sale domain.CampaignSale) error {
	f.sales = append(f.sales, sale)
	return nil
}

type fakeGatewayRepo struct {
	gateways map[int64]domain.PaymentGateway
}

func newFakeGatewayRepo(gateways ...domain.PaymentGateway) *fakeGatewayRepo {
	repo := &fakeGatewayRepo{gateways: map[int64]domain.PaymentGateway{}}
	for _, g := range gateways {
		repo.gateways[g.ID] = g
	}
	return repo
}

func (f *fakeGatewayRepo) FindByID(_ context.Context, id int64) (domain.PaymentGateway, error) {
	g, ok := f.gateways[id]
	if !ok {
		return domain.PaymentGateway{}, notFound("gateways.FindByID")
	}
	return g, nil
}

func (f *fakeGatewayRepo) FindByType(_ context.Context, gatewayType string) (domain.PaymentGateway, error) {
	for _, g := range f.gateways {
		if g.Type == gatewayType {
			return g, nil
		}
	}
	return domain.PaymentGateway{}, notFound("gateways.FindByType")
}

type fakePendingOrderStore struct {
	mu      sync.Mutex
	entries map[int64]domain.PendingOrder
	puts    int
}

func newFakePendingOrderStore() *fakePendingOrderStore {
	return &fakePendingOrderStore{entries: map[int64]domain.PendingOrder{}}
}

func (f *fakePendingOrderStore) Put(_ context.Context, invoiceID int64, pending domain.PendingOrder, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[invoiceID] = pending
	f.puts++
	return nil
}

func (f *fakePendingOrderStore) Get(_ context.Context, invoiceID int64) (domain.PendingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending, ok := f.entries[invoiceID]
	if !ok {
		return domain.PendingOrder{}, notFound("pending_orders.Get")
	}
	return pending, nil
}

func (f *fakePendingOrderStore) Forget(_ context.Context, invoiceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, invoiceID)
	return nil
}

type fakeSessionCartStore struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func newFakeSessionCartStore() *fakeSessionCartStore {
	return &fakeSessionCartStore{carts: map[string]domain.Cart{}}
}

func (f *fakeSessionCartStore) Get(_ context.Context, sessionID string) (domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carts[sessionID], nil
}

func (f *fakeSessionCartStore) Save(_ context.Context, sessionID string, cart domain.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[sessionID] = cart
	return nil
}

func (f *fakeSessionCartStore) Clear(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, sessionID)
	return nil
}

// fakeUnitOfWork mirrors the reentrant contract: nested calls join the
// ambient scope instead of nesting.
type fakeUnitOfWork struct {
	depth int
	runs  int
}

func (f *fakeUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.depth > 0 {
		return fn(ctx)
	}
	f.depth++
	f.runs++
	err := fn(ctx)
	f.depth--
	return err
}

type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) Publish(_ context.Context, event string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEvents) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

type fakePaymentGateway struct {
	available     bool
	initiateErr   error
	initiated     int
	verifyResult  payments.VerifyResult
	verifyErr     error
	verifyCalls   int
	callbackTxnID string
}

func (f *fakePaymentGateway) Initiate(context.Context, payments.InitiateRequest) (payments.InitiateResult, error) {
	f.initiated++
	if f.initiateErr != nil {
		return payments.InitiateResult{}, f.initiateErr
	}
	return payments.InitiateResult{GatewayTransactionID: "gw-txn-1", RedirectURL: "https://pay.example/redirect"}, nil
}

func (f *fakePaymentGateway) Verify(context.Context, payments.VerifyRequest) (payments.VerifyResult, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return payments.VerifyResult{}, f.verifyErr
	}
	return f.verifyResult, nil
}

func (f *fakePaymentGateway) Callback(_ context.Context, payload map[string]any) (payments.CallbackResult, error) {
	return payments.CallbackResult{GatewayTransactionID: f.callbackTxnID, Raw: payload}, nil
}

func (f *fakePaymentGateway) IsAvailable(context.Context) bool { return f.available }

func int64ptr(v int64) *int64 { return &v }
