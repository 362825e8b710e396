package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"
)

// receiptScanPrompt is shared by every provider
const receiptScanPrompt = `Tu analyses le justificatif d'une note de frais (ticket de caisse, facture, billet). Lis tout le texte de l'image et extrais :

1. **name**: le nom du commerçant ou du prestataire suivi d'une courte description, par exemple "SNCF - Paris Lyon" ou "Hôtel du Centre - 2 nuits".
2. **date**: la date de la transaction au format ISO 8601 (YYYY-MM-DD).
3. **amount**: le montant total TTC, en nombre (par exemple 42.75 pour 42,75 €).
4. **vat**: le montant de TVA, en nombre, ou 0 si absent.
5. **category**: la catégorie de la dépense, choisie parmi : Transports, Restaurants et bars, Hôtel et logement, Services en ligne, IT et électronique, Equipement et matériel, Fournitures de bureau.

Réponds UNIQUEMENT avec un JSON valide de la forme :
{
  "name": "Commerçant - description",
  "date": "YYYY-MM-DD",
  "amount": 0.00,
  "vat": 0.00,
  "category": "Transports"
}

Ne mets aucun texte avant ou après le JSON et n'utilise pas de bloc markdown.`

// toPNG re-encodes JPEG receipts as PNG so every provider sees one format
func toPNG(imageData []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "image/png" {
		return imageData, nil
	}
	if mimeType != "image/jpeg" && mimeType != "image/jpg" {
		return nil, fmt.Errorf("unsupported receipt format %q: only JPEG and PNG are scanned", contentType)
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
