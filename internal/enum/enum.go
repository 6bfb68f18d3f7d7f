package enum

// ── State machines (CHECK constrained in DB) ──

// Layaway statuses. Wire values are Spanish: the SPA and the printed
// tickets both show them verbatim.
const (
	LayawayStatusActivo    = "activo"
	LayawayStatusPagado    = "pagado"
	LayawayStatusListo     = "listo"
	LayawayStatusEntregado = "entregado"
	LayawayStatusCancelado = "cancelado"
)

const (
	ItemTypeProducto = "producto"
	ItemTypeArreglo  = "arreglo"
	ItemTypeServicio = "servicio"
)

// ── User roles (CHECK constrained in DB) ──

const (
	UserRoleAdmin    = "ADMIN"
	UserRoleVendedor = "VENDEDOR"
)

// ── Configurable labels (no DB constraint) ──

const (
	PaymentMethodEfectivo      = "efectivo"
	PaymentMethodTarjeta       = "tarjeta"
	PaymentMethodTransferencia = "transferencia"
)

// Measurement field names accepted in an item's medidas map.
// Values are opaque free text (no unit validation).
const (
	MeasurementBusto   = "busto"
	MeasurementCintura = "cintura"
	MeasurementCadera  = "cadera"
	MeasurementEspalda = "espalda"
	MeasurementLargo   = "largo"
	MeasurementManga   = "manga"
	MeasurementOtro    = "otro"
)
