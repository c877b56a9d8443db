package domain

import "errors"

var (
	// ErrNotAuthenticated: к сессии не привязан пользователь, нужен вход.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrLineNotFound: мутация ссылается на позицию, которой нет в зеркале корзины.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrRemoteFailure: ошибка удалённого хранилища; повтор остаётся за вызывающим.
	ErrRemoteFailure = errors.New("remote store failure")
	// ErrIdentityChanged: ответ пришёл для пользователя, который уже сменился в сессии.
	ErrIdentityChanged = errors.New("session identity changed")
	// ErrProductRefRequired: не указан идентификатор товара.
	ErrProductRefRequired = errors.New("product reference is required")
	// ErrQuantityDeltaInvalid: шаг изменения количества вне допустимого диапазона.
	ErrQuantityDeltaInvalid = errors.New("quantity delta is out of range")

	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrLineAlreadyExists: у владельца уже есть позиция для этого товара.
	ErrLineAlreadyExists = errors.New("cart line for product already exists")
	// ErrProductNameRequired: у товара нет названия.
	ErrProductNameRequired = errors.New("product name is required")
	// ErrProductImageRequired: у товара нет изображения.
	ErrProductImageRequired = errors.New("product image is required")
	// ErrProductCategoryRequired: у товара нет категории.
	ErrProductCategoryRequired = errors.New("product category is required")
	// ErrProductPriceInvalid: цена товара должна быть больше нуля.
	ErrProductPriceInvalid = errors.New("product price must be greater than zero")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists: заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrCartEmpty: оформить заказ из пустой корзины нельзя.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrTotalsMismatch: итоги корзины не совпадают с позициями, корзину нужно перечитать.
	ErrTotalsMismatch = errors.New("cart totals do not match cart lines")
	// ErrShippingFieldRequired: не заполнено обязательное поле доставки.
	ErrShippingFieldRequired = errors.New("shipping field is required")
	// ErrOrderStatusInvalid: неизвестный статус заказа.
	ErrOrderStatusInvalid = errors.New("order status is invalid")
	// ErrOrderTransitionInvalid: переход между статусами запрещён.
	ErrOrderTransitionInvalid = errors.New("order status transition is not allowed")

	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsRemoteFailure проверяет, является ли ошибка сбоем удалённого хранилища.
func IsRemoteFailure(err error) bool {
	return errors.Is(err, ErrRemoteFailure)
}

// IsStale сообщает, что результат операции устарел: позиции уже нет
// или пользователь сессии сменился. UI в этом случае перечитывает корзину.
func IsStale(err error) bool {
	return errors.Is(err, ErrLineNotFound) || errors.Is(err, ErrIdentityChanged)
}
