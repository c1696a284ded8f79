package rules

// Default returns the compiled-in 2025 rule table for peninsula Spain.
// Keyword order matters: within a tier the first matching keyword wins.
func Default() *Table {
	return &Table{
		Rates: []RateRule{
			{
				Rate:    4,
				Label:   "Tipo superreducido (4%)",
				Article: "Art. 91.Dos Ley 37/1992",
				Keywords: []string{
					"pan", "leche", "huevo", "fruta", "verdura", "hortaliza",
					"harina", "queso", "legumbre", "libro", "periodico",
					"revista", "medicamento", "tampon", "compresa",
				},
			},
			{
				Rate:    10,
				Label:   "Tipo reducido (10%)",
				Article: "Art. 91.Uno Ley 37/1992",
				Keywords: []string{
					"hosteleria", "restaurante", "comida", "menu", "catering",
					"cafeteria", "hotel", "alojamiento", "transporte", "taxi",
					"tren", "autobus", "metro", "entrada", "museo", "cine",
					"teatro", "concierto", "exposicion",
				},
			},
			{
				Rate:    0,
				Label:   "Exento de IVA",
				Article: "Art. 20 Ley 37/1992",
				Keywords: []string{
					"medico", "sanitario", "clinica", "hospital", "psicologo",
					"dentista", "fisioterapeuta", "formacion reglada",
					"formacion", "educacion", "universidad", "colegio",
					"seguro", "alquiler de vivienda",
				},
			},
			{
				Rate:    21,
				Label:   "Tipo general (21%)",
				Article: "Art. 90.Uno Ley 37/1992",
				Keywords: []string{
					"consultoria", "asesoria", "software", "licencia",
					"hosting", "dominio", "electricidad", "luz", "gas",
					"internet", "fibra", "telefono", "movil", "gasolina",
					"diesel", "combustible", "ordenador", "portatil",
					"publicidad", "marketing", "coworking", "papeleria",
					"material de oficina",
				},
			},
		},
		Deduct: []DeductRule{
			{
				Category: CategoryVehicle,
				Pct:      50,
				Article:  "Art. 95.Tres Ley 37/1992",
				Keywords: []string{
					"gasolina", "diesel", "gasoil", "combustible",
					"carburante", "parking", "aparcamiento", "peaje",
					"taller", "itv", "neumatico", "vehiculo", "coche",
				},
			},
			{
				Category:  CategoryHome,
				Pct:       30,
				Article:   "Art. 95 Ley 37/1992",
				Condition: "works_from_home",
				Keywords: []string{
					"electricidad", "luz", "agua", "gas", "calefaccion",
					"internet", "fibra", "wifi", "telefono", "comunidad",
				},
			},
			{
				Category: CategoryNonDeductible,
				Pct:      0,
				Article:  "Art. 96 Ley 37/1992",
				Keywords: []string{
					"ropa", "vestuario", "multa", "sancion", "regalo",
					"loteria", "joyeria", "peluqueria", "gimnasio",
				},
			},
			{
				Category: CategoryProfessional,
				Pct:      100,
				Article:  "Art. 28-30 Ley 35/2006 IRPF",
				Keywords: []string{
					"software", "licencia", "hosting", "dominio", "servidor",
					"ordenador", "portatil", "monitor", "movil", "asesoria",
					"gestoria", "abogado", "notario", "publicidad",
					"marketing", "formacion", "curso", "coworking",
					"papeleria", "material de oficina", "mensajeria",
					"suscripcion", "viaje", "billete", "hotel", "restaurante",
					"comida", "dieta",
				},
			},
		},
	}
}
