package i18n

var dateStyles = map[string]DateStyle{
	"en": {Layout: "MON 2, 2006, 3:04:05 PM", Months: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}},
	"fr": {Layout: "2 MON 2006, 15:04:05", Months: [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."}},
	"de": {Layout: "02.01.2006, 15:04:05"},
	"es": {Layout: "2 MON 2006, 15:04:05", Months: [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"}},
	"it": {Layout: "2 MON 2006, 15:04:05", Months: [12]string{"gen", "feb", "mar", "apr", "mag", "giu", "lug", "ago", "set", "ott", "nov", "dic"}},
}

var builtin = map[string]map[string]string{
	"en": {
		"banner.test":     "TEST",
		"banner.test_msg": "This is a test notification.",

		"header.event": "Event",
		"header.date":  "Date",
		"header.ref":   "Ref.",

		"section.connection": "Connection details",
		"section.server":     "Server info",
		"section.delivery":   "Delivery details",
		"section.error":      "Error details",
		"section.data":       "Data",

		"field.account":     "Account",
		"field.account_id":  "Account ID",
		"field.code":        "Code",
		"field.details":     "Details",
		"field.elapsed":     "Elapsed (ms)",
		"field.error":       "Error",
		"field.from":        "From",
		"field.hostname":    "Hostname",
		"field.id":          "ID",
		"field.listener":    "Listener",
		"field.local_port":  "Local port",
		"field.message_id":  "Message ID",
		"field.queue":       "Queue",
		"field.reason":      "Reason",
		"field.remote_ip":   "Remote IP",
		"field.remote_port": "Remote port",
		"field.size":        "Size",
		"field.span_id":     "Span ID",
		"field.to":          "To",
		"field.total":       "Total",
		"field.version":     "Version",

		"title.auth.success":                "Auth success",
		"title.auth.failed":                 "Auth failed",
		"title.auth.error":                  "Auth error",
		"title.delivery.delivered":          "Message delivered",
		"title.delivery.completed":          "Delivery completed",
		"title.delivery.failed":             "Delivery failed",
		"title.security.ip-blocked":         "Security alert — IP blocked",
		"title.security.abuse-ban":          "Security — Abuse ban",
		"title.security.authentication-ban": "Security — Authentication ban",
		"title.server.startup":              "Server starting",
		"title.server.startup-error":        "Server startup error",

		"link.lookup": "View on AbuseIPDB",

		"group.more":   "… and {n} more",
		"group.latest": "Latest",

		"bot.welcome":         "👋 <b>Stalwart notifications</b>\nI forward events from your Stalwart mail server.\nUse /events to see what you can follow, then /subscribe &lt;event&gt; or /subscribe all.",
		"bot.help":            "📚 <b>Commands</b>",
		"bot.denied":          "⛔ Access denied.",
		"bot.admin_denied":    "⛔ This command is for administrators.",
		"bot.events":          "📋 <b>Available events</b>",
		"bot.sub_usage":       "Usage: /subscribe &lt;event&gt; or /subscribe all",
		"bot.unsub_usage":     "Usage: /unsubscribe &lt;event&gt; or /unsubscribe all",
		"bot.unknown_event":   "❓ Unknown event. See /events.",
		"bot.sub_ok":          "✅ Subscribed to <code>{event}</code>.",
		"bot.sub_already":     "ℹ️ Already subscribed to <code>{event}</code>.",
		"bot.sub_all":         "✅ Subscribed to {n} event(s).",
		"bot.sub_all_already": "ℹ️ Already subscribed to every event.",
		"bot.unsub_ok":        "✅ Unsubscribed from <code>{event}</code>.",
		"bot.unsub_missing":   "ℹ️ You were not subscribed to <code>{event}</code>.",
		"bot.unsub_all":       "✅ Removed {n} subscription(s).",
		"bot.list":            "🔔 <b>Your subscriptions</b>",
		"bot.list_empty":      "You have no subscriptions. Try /subscribe all.",
		"bot.prefs":           "⚙️ <b>Preferences</b>",
		"bot.prefs_language":  "Language",
		"bot.prefs_timezone":  "Timezone",
		"bot.prefs_short":     "Short notifications",
		"bot.lang_usage":      "Usage: /lang en|fr|de|es|it",
		"bot.lang_ok":         "✅ Language: {locale}",
		"bot.tz_usage":        "Usage: /timezone &lt;zone&gt; (e.g. Europe/Paris, UTC)",
		"bot.tz_invalid":      "❓ Unknown timezone <code>{zone}</code>.",
		"bot.tz_ok":           "✅ Timezone: <code>{zone}</code>",
		"bot.short_usage":     "Usage: /short on|off",
		"bot.short_ok":        "✅ Short notifications: {state}",
		"bot.status":          "📊 <b>Status</b>",
		"bot.recent":          "🕘 <b>Recent events</b>",
		"bot.recent_empty":    "No events recorded.",
		"bot.test_sent":       "🧪 Test event <code>{event}</code>: {outcome}",
		"bot.error":           "⚠️ Something went wrong, please try again.",
	},
	"fr": {
		"banner.test":     "TEST",
		"banner.test_msg": "Ceci est une notification de test.",

		"header.event": "Événement",
		"header.date":  "Date",
		"header.ref":   "Réf.",

		"section.connection": "Détails de connexion",
		"section.server":     "Infos serveur",
		"section.delivery":   "Détails de livraison",
		"section.error":      "Détails de l'erreur",
		"section.data":       "Données",

		"field.account":     "Compte",
		"field.account_id":  "ID du compte",
		"field.code":        "Code",
		"field.details":     "Détails",
		"field.elapsed":     "Durée (ms)",
		"field.error":       "Erreur",
		"field.from":        "De",
		"field.hostname":    "Hôte",
		"field.id":          "ID",
		"field.listener":    "Écouteur",
		"field.local_port":  "Port local",
		"field.message_id":  "ID du message",
		"field.queue":       "File",
		"field.reason":      "Raison",
		"field.remote_ip":   "IP distante",
		"field.remote_port": "Port distant",
		"field.size":        "Taille",
		"field.span_id":     "Span ID",
		"field.to":          "À",
		"field.total":       "Total",
		"field.version":     "Version",

		"title.auth.success":                "Authentification réussie",
		"title.auth.failed":                 "Échec d'authentification",
		"title.auth.error":                  "Erreur d'authentification",
		"title.delivery.delivered":          "Message remis",
		"title.delivery.completed":          "Livraison terminée",
		"title.delivery.failed":             "Échec de livraison",
		"title.security.ip-blocked":         "Alerte sécurité — IP bloquée",
		"title.security.abuse-ban":          "Sécurité — Bannissement pour abus",
		"title.security.authentication-ban": "Sécurité — Bannissement d'authentification",
		"title.server.startup":              "Démarrage du serveur",
		"title.server.startup-error":        "Erreur au démarrage du serveur",

		"link.lookup": "Voir sur AbuseIPDB",

		"group.more":   "… et {n} de plus",
		"group.latest": "Dernier",

		"bot.welcome":        "👋 <b>Notifications Stalwart</b>\nJe relaie les événements de votre serveur mail Stalwart.\nUtilisez /events pour voir les événements, puis /subscribe &lt;événement&gt; ou /subscribe all.",
		"bot.help":           "📚 <b>Commandes</b>",
		"bot.denied":         "⛔ Accès refusé.",
		"bot.admin_denied":   "⛔ Commande réservée aux administrateurs.",
		"bot.events":         "📋 <b>Événements disponibles</b>",
		"bot.unknown_event":  "❓ Événement inconnu. Voir /events.",
		"bot.sub_ok":         "✅ Abonné à <code>{event}</code>.",
		"bot.sub_already":    "ℹ️ Déjà abonné à <code>{event}</code>.",
		"bot.sub_all":        "✅ Abonné à {n} événement(s).",
		"bot.unsub_ok":       "✅ Désabonné de <code>{event}</code>.",
		"bot.list":           "🔔 <b>Vos abonnements</b>",
		"bot.list_empty":     "Aucun abonnement. Essayez /subscribe all.",
		"bot.prefs":          "⚙️ <b>Préférences</b>",
		"bot.prefs_language": "Langue",
		"bot.prefs_timezone": "Fuseau horaire",
		"bot.prefs_short":    "Notifications courtes",
		"bot.lang_ok":        "✅ Langue : {locale}",
		"bot.tz_ok":          "✅ Fuseau horaire : <code>{zone}</code>",
		"bot.short_ok":       "✅ Notifications courtes : {state}",
		"bot.status":         "📊 <b>État</b>",
		"bot.error":          "⚠️ Une erreur est survenue, réessayez.",
	},
	"de": {
		"banner.test":     "TEST",
		"banner.test_msg": "Dies ist eine Testbenachrichtigung.",

		"header.event": "Ereignis",
		"header.date":  "Datum",
		"header.ref":   "Ref.",

		"section.connection": "Verbindungsdetails",
		"section.server":     "Serverinfo",
		"section.delivery":   "Zustelldetails",
		"section.error":      "Fehlerdetails",
		"section.data":       "Daten",

		"field.account":     "Konto",
		"field.account_id":  "Konto-ID",
		"field.details":     "Details",
		"field.elapsed":     "Dauer (ms)",
		"field.error":       "Fehler",
		"field.from":        "Von",
		"field.listener":    "Listener",
		"field.local_port":  "Lokaler Port",
		"field.message_id":  "Nachrichten-ID",
		"field.queue":       "Warteschlange",
		"field.reason":      "Grund",
		"field.remote_ip":   "Remote-IP",
		"field.remote_port": "Remote-Port",
		"field.size":        "Größe",
		"field.to":          "An",
		"field.total":       "Gesamt",

		"title.auth.success":                "Anmeldung erfolgreich",
		"title.auth.failed":                 "Anmeldung fehlgeschlagen",
		"title.auth.error":                  "Anmeldefehler",
		"title.delivery.delivered":          "Nachricht zugestellt",
		"title.delivery.completed":          "Zustellung abgeschlossen",
		"title.delivery.failed":             "Zustellung fehlgeschlagen",
		"title.security.ip-blocked":         "Sicherheitswarnung — IP blockiert",
		"title.security.abuse-ban":          "Sicherheit — Sperre wegen Missbrauch",
		"title.security.authentication-ban": "Sicherheit — Anmeldesperre",
		"title.server.startup":              "Server startet",
		"title.server.startup-error":        "Fehler beim Serverstart",

		"link.lookup": "Auf AbuseIPDB ansehen",

		"group.more":   "… und {n} weitere",
		"group.latest": "Neuestes",
	},
	"es": {
		"banner.test":     "PRUEBA",
		"banner.test_msg": "Esta es una notificación de prueba.",

		"header.event": "Evento",
		"header.date":  "Fecha",
		"header.ref":   "Ref.",

		"section.connection": "Detalles de conexión",
		"section.server":     "Información del servidor",
		"section.delivery":   "Detalles de entrega",
		"section.error":      "Detalles del error",
		"section.data":       "Datos",

		"field.account":     "Cuenta",
		"field.account_id":  "ID de cuenta",
		"field.details":     "Detalles",
		"field.elapsed":     "Duración (ms)",
		"field.error":       "Error",
		"field.from":        "De",
		"field.listener":    "Escucha",
		"field.local_port":  "Puerto local",
		"field.message_id":  "ID del mensaje",
		"field.queue":       "Cola",
		"field.reason":      "Motivo",
		"field.remote_ip":   "IP remota",
		"field.remote_port": "Puerto remoto",
		"field.size":        "Tamaño",
		"field.to":          "Para",

		"title.auth.success":                "Autenticación correcta",
		"title.auth.failed":                 "Autenticación fallida",
		"title.auth.error":                  "Error de autenticación",
		"title.delivery.delivered":          "Mensaje entregado",
		"title.delivery.completed":          "Entrega completada",
		"title.delivery.failed":             "Entrega fallida",
		"title.security.ip-blocked":         "Alerta de seguridad — IP bloqueada",
		"title.security.abuse-ban":          "Seguridad — Bloqueo por abuso",
		"title.security.authentication-ban": "Seguridad — Bloqueo de autenticación",
		"title.server.startup":              "Servidor iniciándose",
		"title.server.startup-error":        "Error al iniciar el servidor",

		"link.lookup": "Ver en AbuseIPDB",

		"group.more":   "… y {n} más",
		"group.latest": "Último",
	},
	"it": {
		"banner.test":     "TEST",
		"banner.test_msg": "Questa è una notifica di prova.",

		"header.event": "Evento",
		"header.date":  "Data",
		"header.ref":   "Rif.",

		"section.connection": "Dettagli connessione",
		"section.server":     "Info server",
		"section.delivery":   "Dettagli consegna",
		"section.error":      "Dettagli errore",
		"section.data":       "Dati",

		"field.account":     "Account",
		"field.account_id":  "ID account",
		"field.details":     "Dettagli",
		"field.elapsed":     "Durata (ms)",
		"field.error":       "Errore",
		"field.from":        "Da",
		"field.local_port":  "Porta locale",
		"field.message_id":  "ID messaggio",
		"field.queue":       "Coda",
		"field.reason":      "Motivo",
		"field.remote_ip":   "IP remoto",
		"field.remote_port": "Porta remota",
		"field.size":        "Dimensione",
		"field.to":          "A",
		"field.total":       "Totale",

		"title.auth.success":                "Autenticazione riuscita",
		"title.auth.failed":                 "Autenticazione fallita",
		"title.auth.error":                  "Errore di autenticazione",
		"title.delivery.delivered":          "Messaggio consegnato",
		"title.delivery.completed":          "Consegna completata",
		"title.delivery.failed":             "Consegna fallita",
		"title.security.ip-blocked":         "Avviso di sicurezza — IP bloccato",
		"title.security.abuse-ban":          "Sicurezza — Ban per abuso",
		"title.security.authentication-ban": "Sicurezza — Ban di autenticazione",
		"title.server.startup":              "Avvio del server",
		"title.server.startup-error":        "Errore di avvio del server",

		"link.lookup": "Vedi su AbuseIPDB",

		"group.more":   "… e altri {n}",
		"group.latest": "Ultimo",
	},
}
