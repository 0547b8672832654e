package client

// Palinsesto is one venue schedule: days in upstream order.
type Palinsesto struct {
	Days []Day `json:"giorni"`
}

// Day groups the time slots of one calendar date.
type Day struct {
	Date  LooseString `json:"giorno"`      // YYYY-MM-DD
	Label LooseString `json:"nome_giorno"` // e.g. "Lunedì"
	Slots []Slot      `json:"orari_giorno"`
}

// Slot is a single class session ("orario").
type Slot struct {
	ID           LooseString  `json:"id_orario_palinsesto"`
	Course       LooseString  `json:"nome_corso"`
	Start        LooseString  `json:"orario_inizio"` // HH:MM
	End          LooseString  `json:"orario_fine"`   // HH:MM
	Availability Availability `json:"prenotazioni"`
}

// Availability is the booking state of a slot ("disponibilità").
type Availability struct {
	Status    LooseString `json:"id_disponibilita"`
	FreeSeats LooseInt    `json:"numero_posti_disponibili"`
	Reason    LooseString `json:"frase"`
}

// NotBookableStatus marks a slot that cannot be booked right now: seats
// exhausted, window not open yet, or any other provider-side reason.
const NotBookableStatus = "0"

// Bookable reports whether the provider accepts bookings for the slot.
func (a Availability) Bookable() bool {
	return string(a.Status) != NotBookableStatus
}

// BookingResult is the upstream answer to a booking request.
type BookingResult struct {
	Status   int
	Message  string
	Attempts int
}

type loginParametri struct {
	Sessione struct {
		CodiceSessione LooseString `json:"codice_sessione"`
	} `json:"sessione"`
}

type palinsestiParametri struct {
	ListaRisultati []Palinsesto `json:"lista_risultati"`
}
