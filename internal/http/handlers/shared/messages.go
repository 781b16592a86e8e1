package shared

import "strings"

// messages 错误消息表，键与日志中的 key 对应
var messages = map[string]string{
	"error.bad_request":            "solicitud inválida",
	"error.unauthorized":           "no autenticado",
	"error.forbidden":              "sin permisos para esta acción",
	"error.not_found":              "recurso no encontrado",
	"error.internal":               "error interno del servidor",
	"error.too_many_requests":      "demasiados intentos, inténtalo más tarde",
	"error.invalid_credentials":    "correo o contraseña incorrectos",
	"error.invalid_token":          "token inválido o expirado",
	"error.user_disabled":          "la cuenta está deshabilitada",
	"error.user_not_found":         "usuario no encontrado",
	"error.email_exists":           "el correo ya está registrado",
	"error.email_invalid":          "correo inválido",
	"error.password_weak":          "la contraseña no cumple la política",
	"error.role_unknown":           "rol desconocido",
	"error.self_update_admin":      "un administrador debe usar el endpoint de administración",
	"error.self_delete_admin":      "un administrador no puede eliminar su propia cuenta",
	"error.target_is_self":         "no puedes modificar tu propia cuenta aquí",
	"error.role_change_denied":     "no puedes cambiar roles",
	"error.admin_protected":        "no se puede modificar a otro administrador",
	"error.user_update_empty":      "no hay campos para actualizar",
	"error.position_exists":        "la posición ya existe",
	"error.position_invalid":       "posición inválida",
	"error.position_not_found":     "posición no encontrada",
	"error.image_required":         "la imagen es obligatoria",
	"error.image_too_large":        "la imagen excede el tamaño permitido",
	"error.image_type_not_allowed": "tipo de imagen no permitido",
	"error.image_invalid":          "la imagen no es válida",
	"error.image_upload_failed":    "no se pudo subir la imagen",
	"error.banner_not_found":       "banner no encontrado",
	"error.banner_forbidden":       "no puedes modificar este banner",
	"error.banner_update_empty":    "se requiere al menos un campo o un archivo",
	"error.banner_link_invalid":    "destination_link debe ser una url http(s) absoluta",
	"error.banner_date_range":      "end_date debe ser posterior a start_date",
	"error.banner_renewal_invalid": "política de renovación inválida",
	"error.banner_capacity":        "la posición no tiene espacio en esas fechas",
	"error.display_order_required": "display_order es obligatorio para esta posición",
	"error.display_order_range":    "display_order fuera de rango",
	"error.display_order_conflict": "display_order ya está ocupado en esas fechas",
	"error.slot_busy":              "la posición está ocupada, reintenta en unos segundos",
	"error.lifecycle_failed":       "no se pudo ejecutar el ciclo de vida",
	"error.banner_fetch_failed":    "no se pudieron obtener los banners",
	"error.position_fetch_failed":  "no se pudieron obtener las posiciones",
	"error.user_fetch_failed":      "no se pudieron obtener los usuarios",
	"error.date_invalid":           "fecha inválida, usa 2006-01-02 o RFC3339",
	"error.number_invalid":         "valor numérico inválido",
}

// Message 查找消息，未登记的 key 原样返回
func Message(key string) string {
	key = strings.TrimSpace(key)
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}
